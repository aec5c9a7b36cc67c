package labeldb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/btd"
	"github.com/cyclopcam/logs"
	"github.com/zeebo/blake3"
	"gorm.io/gorm"
)

var ErrRevisionNotFound = errors.New("Revision not found")

// LabelDB is the revision history of an annotation project.
// Every save writes a snapshot of the whole document, unless nothing has changed since the
// previous snapshot.
type LabelDB struct {
	Log          logs.Log
	DB           *gorm.DB
	MaxRevisions int // 0 = keep everything
}

// Open or create a revision DB
func Open(logger logs.Log, dbFilename string, maxRevisions int) (*LabelDB, error) {
	logger = logs.NewPrefixLogger(logger, "LabelDB")
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create revision storage path '%v': %w", filepath.Dir(dbFilename), err)
	}
	logger.Infof("Opening revision DB at '%v'", dbFilename)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open revision database %v: %w", dbFilename, err)
	}
	return &LabelDB{
		Log:          logger,
		DB:           db,
		MaxRevisions: maxRevisions,
	}, nil
}

func (l *LabelDB) Close() {
	if sqlDB, err := l.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// Save writes a snapshot of doc.
// If doc is identical to the most recent snapshot, nothing is written, and the existing
// revision is returned with created = false.
func (l *LabelDB) Save(doc *annotation.Document, message string) (rev *Revision, created bool, err error) {
	buf := bytes.Buffer{}
	if err := btd.Encode(&buf, doc, nil); err != nil {
		return nil, false, err
	}
	hash := blake3.Sum256(buf.Bytes())

	latest, err := l.Latest()
	if err != nil && !errors.Is(err, ErrRevisionNotFound) {
		return nil, false, err
	}
	if latest != nil && bytes.Equal(latest.Hash, hash[:]) {
		return latest, false, nil
	}

	rev = &Revision{
		Time:     dbh.MakeIntTime(time.Now()),
		Hash:     hash[:],
		Message:  message,
		Video:    doc.LinkedVideo(),
		Tracks:   doc.TrackCount(),
		Boxes:    doc.BoxCount(),
		Size:     buf.Len(),
		Document: buf.Bytes(),
	}
	if err := l.DB.Create(rev).Error; err != nil {
		return nil, false, err
	}
	l.Log.Infof("Saved revision %v (%v tracks, %v boxes, %v bytes)", rev.ID, rev.Tracks, rev.Boxes, rev.Size)

	if err := l.purge(); err != nil {
		l.Log.Warnf("Failed to purge old revisions: %v", err)
	}
	return rev, true, nil
}

// Latest returns the most recent revision, without its document
func (l *LabelDB) Latest() (*Revision, error) {
	revs, err := l.List(1)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, ErrRevisionNotFound
	}
	return revs[0], nil
}

// List returns revisions from newest to oldest, without their documents.
// A limit <= 0 means no limit.
func (l *LabelDB) List(limit int) ([]*Revision, error) {
	q := l.DB.Omit("document").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var revs []*Revision
	if err := q.Find(&revs).Error; err != nil {
		return nil, err
	}
	return revs, nil
}

// Get returns a revision, including its document
func (l *LabelDB) Get(id int64) (*Revision, error) {
	rev := &Revision{}
	if err := l.DB.Where("id = ?", id).First(rev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrRevisionNotFound, id)
		}
		return nil, err
	}
	return rev, nil
}

// Load decodes the document of a revision
func (l *LabelDB) Load(id int64) (*annotation.Document, *Revision, error) {
	rev, err := l.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if hash := blake3.Sum256(rev.Document); !bytes.Equal(hash[:], rev.Hash) {
		return nil, nil, fmt.Errorf("Revision %v is corrupt (hash mismatch)", id)
	}
	doc, err := btd.Decode(bytes.NewReader(rev.Document), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to decode revision %v: %w", id, err)
	}
	return doc, rev, nil
}

func (l *LabelDB) purge() error {
	if l.MaxRevisions <= 0 {
		return nil
	}
	res := l.DB.Exec("DELETE FROM revision WHERE id NOT IN (SELECT id FROM revision ORDER BY id DESC LIMIT ?)", l.MaxRevisions)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 0 {
		l.Log.Infof("Purged %v old revisions", res.RowsAffected)
	}
	return nil
}
