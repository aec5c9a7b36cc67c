package annotation

import "fmt"

type ChangeKind int

const (
	ChangeNothing ChangeKind = iota
	ChangeBoxUpserted
	ChangeBoxDeleted
	ChangeTrackAdded
	ChangeTrackRemoved
	ChangeTrackMoved
	ChangeCategoryAdded
	ChangeCategoryRemoved
	ChangeCategoryRenamed
	ChangeOrder
	ChangeDocumentReset
	ChangeVideo
)

var changeKindNames = map[ChangeKind]string{
	ChangeNothing:         "nothing",
	ChangeBoxUpserted:     "boxUpserted",
	ChangeBoxDeleted:      "boxDeleted",
	ChangeTrackAdded:      "trackAdded",
	ChangeTrackRemoved:    "trackRemoved",
	ChangeTrackMoved:      "trackMoved",
	ChangeCategoryAdded:   "categoryAdded",
	ChangeCategoryRemoved: "categoryRemoved",
	ChangeCategoryRenamed: "categoryRenamed",
	ChangeOrder:           "order",
	ChangeDocumentReset:   "documentReset",
	ChangeVideo:           "video",
}

func (k ChangeKind) String() string {
	if s, ok := changeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ChangeKind) UnmarshalText(b []byte) error {
	for kind, name := range changeKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("Unknown change kind '%v'", string(b))
}

// Change describes the effect of a mutation on the model.
// The model itself has no notification mechanism: whoever mutates it
// receives a Change and forwards it to whatever views need to know.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Category string     `json:"category,omitempty"`
	TrackID  int        `json:"trackID"`
	Frame    int        `json:"frame"` // Frame that was touched, when Kind is a box change
	Delta    int        `json:"delta"` // Change in the number of stored boxes (or tracks, or categories)
}

// Changed is false when the mutation turned out to be a no-op
func (c Change) Changed() bool {
	return c.Kind != ChangeNothing
}

func (c Change) String() string {
	return fmt.Sprintf("%v category:'%v' track:%v frame:%v delta:%v", c.Kind, c.Category, c.TrackID, c.Frame, c.Delta)
}
