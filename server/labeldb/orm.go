package labeldb

import (
	"encoding/hex"

	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// A Revision is a snapshot of an annotation document, stored in our native binary format
type Revision struct {
	BaseModel
	Time     dbh.IntTime `json:"time"`    // When the snapshot was taken
	Hash     []byte      `json:"-"`       // blake3 hash of Document
	Message  string      `json:"message"` // eg "autosave", "import viper"
	Video    string      `json:"video"`   // Linked video filename at the time of the snapshot
	Tracks   int         `json:"tracks"`
	Boxes    int         `json:"boxes"`
	Size     int         `json:"size"` // Size of Document in bytes
	Document []byte      `json:"-"`    // Not loaded by LabelDB.List
}

// HashHex is a short, printable form of Hash
func (r *Revision) HashHex() string {
	return hex.EncodeToString(r.Hash)
}
