package project

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/codec"
	"github.com/cyclopcam/groundtruth/pkg/progress"
	"github.com/cyclopcam/groundtruth/server/config"
	"github.com/cyclopcam/groundtruth/server/labeldb"
	"github.com/cyclopcam/logs"
)

// Size of each subscriber's channel. A subscriber that falls further behind than this loses changes,
// and must re-fetch the document.
const subscriberQueueSize = 256

// ChangeEvent is a Change, stamped with a sequence number so that clients can detect gaps
type ChangeEvent struct {
	Seq int64 `json:"seq"`
	annotation.Change
}

// Project owns the live annotation document of a server.
// All access to the document goes through the project's lock.
type Project struct {
	Log logs.Log
	DB  *labeldb.LabelDB

	cfg *config.Config

	docLock sync.Mutex // Guards everything below
	doc     *annotation.Document
	dirty   bool
	seq     int64
	backlog ringbuffer.RingP[ChangeEvent]

	subsLock sync.Mutex
	subs     map[int]chan ChangeEvent
	nextSub  int
}

// Open creates the project. The document is loaded from the most recent revision, or if there
// are no revisions yet, from cfg.Document.
func Open(logger logs.Log, cfg *config.Config, db *labeldb.LabelDB) (*Project, error) {
	p := &Project{
		Log:     logs.NewPrefixLogger(logger, "Project"),
		DB:      db,
		cfg:     cfg,
		doc:     annotation.NewDocument(),
		backlog: ringbuffer.NewRingP[ChangeEvent](cfg.BacklogRingSize()),
		subs:    map[int]chan ChangeEvent{},
	}

	latest, err := db.Latest()
	if err == nil {
		doc, _, err := db.Load(latest.ID)
		if err != nil {
			return nil, err
		}
		doc.UpdateFrameCount()
		p.doc = doc
		p.Log.Infof("Loaded revision %v (%v tracks)", latest.ID, latest.Tracks)
	} else if !errors.Is(err, labeldb.ErrRevisionNotFound) {
		return nil, err
	} else if cfg.Document != "" {
		res, err := codec.ReadFile(cfg.Document, p.doc, progress.NewLogSink(p.Log, "Loading "+cfg.Document, nil))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		} else if err == nil {
			p.Log.Infof("Loaded %v tracks from %v", res.Tracks, cfg.Document)
		}
	}
	return p, nil
}

// Close saves any unsaved changes
func (p *Project) Close() error {
	p.docLock.Lock()
	dirty := p.dirty
	p.docLock.Unlock()
	if dirty {
		if _, _, err := p.Save("shutdown"); err != nil {
			return err
		}
	}
	p.subsLock.Lock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.subsLock.Unlock()
	return nil
}

// View runs f with the document locked. f must not retain doc.
func (p *Project) View(f func(doc *annotation.Document)) {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	f(p.doc)
}

// Mutate runs f with the document locked, and publishes the changes that f returns.
// Changes are published even if f also returns an error.
func (p *Project) Mutate(f func(doc *annotation.Document) ([]annotation.Change, error)) ([]ChangeEvent, error) {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	changes, err := f(p.doc)
	return p.record(changes), err
}

// record numbers the changes, adds them to the backlog, and publishes them.
// Must be called with docLock held, so that subscribers see events in seq order.
func (p *Project) record(changes []annotation.Change) []ChangeEvent {
	var events []ChangeEvent
	for _, c := range changes {
		if !c.Changed() {
			continue
		}
		p.seq++
		ev := ChangeEvent{Seq: p.seq, Change: c}
		p.backlog.Add(ev)
		events = append(events, ev)
		p.dirty = true
	}
	p.publish(events)
	return events
}

func (p *Project) publish(events []ChangeEvent) {
	if len(events) == 0 {
		return
	}
	p.subsLock.Lock()
	defer p.subsLock.Unlock()
	for id, ch := range p.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				p.Log.Warnf("Subscriber %v is not keeping up. Dropping change %v", id, ev.Seq)
			}
		}
	}
}

// Subscribe returns a channel of future changes.
// The channel is closed by Unsubscribe, or when the project is closed.
func (p *Project) Subscribe() (int, <-chan ChangeEvent) {
	p.subsLock.Lock()
	defer p.subsLock.Unlock()
	p.nextSub++
	ch := make(chan ChangeEvent, subscriberQueueSize)
	p.subs[p.nextSub] = ch
	return p.nextSub, ch
}

func (p *Project) Unsubscribe(id int) {
	p.subsLock.Lock()
	defer p.subsLock.Unlock()
	if ch, ok := p.subs[id]; ok {
		close(ch)
		delete(p.subs, id)
	}
}

// ChangesSince returns the changes in the backlog with a sequence number greater than 'seq',
// as well as the sequence number of the most recent change.
// If the backlog no longer reaches back that far, or 'seq' is from the future (eg before a
// server restart), complete is false, and the caller should re-fetch the whole document.
func (p *Project) ChangesSince(seq int64) (events []ChangeEvent, latest int64, complete bool) {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	latest = p.seq
	if seq > p.seq {
		return nil, latest, false
	}
	complete = seq == p.seq
	for i := 0; i < p.backlog.Len(); i++ {
		ev := p.backlog.Peek(i)
		if ev.Seq == seq+1 {
			complete = true
		}
		if ev.Seq > seq {
			events = append(events, ev)
		}
	}
	return
}

// Import replaces the document with the contents of r.
// If the import fails after the document has already been altered (which can happen with BB files),
// the partial document is still announced to subscribers, and it is marked as unsaved.
func (p *Project) Import(r io.Reader, format labelformat.Format, sink progress.Sink) (codec.ImportResult, error) {
	p.docLock.Lock()
	res, err := codec.Decode(r, format, p.doc, progress.NewLogSink(p.Log, "Import "+string(format), sink))
	if res.Modified {
		p.record([]annotation.Change{{Kind: annotation.ChangeDocumentReset, Delta: p.doc.BoxCount()}})
	}
	p.docLock.Unlock()
	if err != nil {
		if res.Modified {
			p.Log.Warnf("Import of %v file failed part way through, after reading %v tracks: %v", format, res.Tracks, err)
		}
		return res, err
	}
	p.Log.Infof("Imported %v tracks from %v file (%v skipped)", res.Tracks, format, res.Skipped)
	if _, _, err := p.Save("import " + string(format)); err != nil {
		return res, err
	}
	return res, nil
}

// Export writes the document in the given format
func (p *Project) Export(w io.Writer, format labelformat.Format, sink progress.Sink) error {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	return codec.Encode(w, format, p.doc, sink)
}

// Save records a revision, and if a document file is configured, writes it too
func (p *Project) Save(message string) (*labeldb.Revision, bool, error) {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	rev, created, err := p.DB.Save(p.doc, message)
	if err != nil {
		return nil, false, err
	}
	if p.cfg.Document != "" {
		if err := codec.WriteFile(p.cfg.Document, p.doc, nil); err != nil {
			return nil, false, fmt.Errorf("Failed to write %v: %w", p.cfg.Document, err)
		}
	}
	p.dirty = false
	return rev, created, nil
}

// Restore replaces the document with a stored revision.
// The current state is saved first, so a restore can always be undone.
func (p *Project) Restore(id int64) error {
	if _, _, err := p.Save("before restore"); err != nil {
		return err
	}
	doc, rev, err := p.DB.Load(id)
	if err != nil {
		return err
	}
	p.docLock.Lock()
	p.doc.Categories = doc.Categories
	p.doc.IDs = doc.IDs
	p.doc.Video.Filename = doc.Video.Filename
	p.doc.UpdateFrameCount()
	p.record([]annotation.Change{{Kind: annotation.ChangeDocumentReset, Delta: p.doc.BoxCount()}})
	p.docLock.Unlock()
	p.Log.Infof("Restored revision %v from %v", id, rev.Time.Get())
	return nil
}

// SetVideo records the properties of the video being annotated
func (p *Project) SetVideo(v annotation.VideoInfo) []ChangeEvent {
	p.docLock.Lock()
	defer p.docLock.Unlock()
	if p.doc.Video == v {
		return nil
	}
	p.doc.Video = v
	p.doc.UpdateFrameCount()
	return p.record([]annotation.Change{{Kind: annotation.ChangeVideo}})
}
