package project

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/bb"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/codec"
	"github.com/cyclopcam/groundtruth/server/config"
	"github.com/cyclopcam/groundtruth/server/labeldb"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func createTestProject(t *testing.T, document string) *Project {
	log := logs.NewTestingLog(t)
	cfg := config.DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.Document = document
	cfg.ChangeBacklog = 4
	db, err := labeldb.Open(log, cfg.DBFilename(), cfg.MaxRevisions)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	p, err := Open(log, cfg, db)
	require.NoError(t, err)
	return p
}

func addTrack(t *testing.T, p *Project, category string) int {
	id := 0
	_, err := p.Mutate(func(doc *annotation.Document) ([]annotation.Change, error) {
		track, ch := doc.NewTrack(doc.EnsureCategory(category))
		id = track.ID()
		return []annotation.Change{ch}, nil
	})
	require.NoError(t, err)
	return id
}

func TestMutateAndSubscribe(t *testing.T) {
	p := createTestProject(t, "")
	subID, ch := p.Subscribe()

	id := addTrack(t, p, "car")
	events, err := p.Mutate(func(doc *annotation.Document) ([]annotation.Change, error) {
		c1, err := doc.Upsert(id, annotation.Key(3, 0, 0, 10, 10))
		if err != nil {
			return nil, err
		}
		// A no-op is not published
		c2, err := doc.DeleteBox(id, 99)
		return []annotation.Change{c1, c2}, err
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := <-ch
	require.Equal(t, annotation.ChangeTrackAdded, ev.Kind)
	require.Equal(t, int64(1), ev.Seq)
	ev = <-ch
	require.Equal(t, annotation.ChangeBoxUpserted, ev.Kind)
	require.Equal(t, "car", ev.Category)
	require.Equal(t, 3, ev.Frame)

	p.Unsubscribe(subID)
	_, open := <-ch
	require.False(t, open)

	p.View(func(doc *annotation.Document) {
		require.Equal(t, 1, doc.BoxCount())
	})
}

func TestChangesSince(t *testing.T) {
	// A backlog of 4 needs a ring of 8, which holds 7 changes
	p := createTestProject(t, "")
	for i := 0; i < 10; i++ {
		addTrack(t, p, "a")
	}
	// Backlog holds the last 7 changes (seq 4..10)
	events, latest, complete := p.ChangesSince(3)
	require.True(t, complete)
	require.Equal(t, int64(10), latest)
	require.Len(t, events, 7)
	require.Equal(t, int64(4), events[0].Seq)
	require.Equal(t, int64(10), events[6].Seq)

	_, _, complete = p.ChangesSince(2)
	require.False(t, complete)

	events, _, complete = p.ChangesSince(10)
	require.True(t, complete)
	require.Len(t, events, 0)

	// A client that remembers a previous run of the server
	_, _, complete = p.ChangesSince(100)
	require.False(t, complete)
}

func TestBacklogSizeNotPowerOfTwo(t *testing.T) {
	log := logs.NewTestingLog(t)
	cfg := config.DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.ChangeBacklog = 1000
	db, err := labeldb.Open(log, cfg.DBFilename(), cfg.MaxRevisions)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	p, err := Open(log, cfg, db)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		addTrack(t, p, "a")
	}
	events, _, complete := p.ChangesSince(0)
	require.True(t, complete)
	require.Len(t, events, 1000)
}

func TestImportExportSaveRestore(t *testing.T) {
	docFile := filepath.Join(t.TempDir(), "labels.xml")
	p := createTestProject(t, docFile)

	src := annotation.CreateTestDocument(7, 2, 3, 40)
	buf := bytes.Buffer{}
	require.NoError(t, codec.Encode(&buf, labelformat.FormatBB, src, nil))

	res, err := p.Import(&buf, labelformat.FormatBB, nil)
	require.NoError(t, err)
	require.NotZero(t, res.Tracks)

	// Import writes a revision, and the configured document file
	revs, err := p.DB.List(0)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	_, err = os.Stat(docFile)
	require.NoError(t, err)

	imported := 0
	p.View(func(doc *annotation.Document) {
		imported = doc.TrackCount()
		require.Equal(t, bb.ImportCategory, doc.Categories[0].Name)
	})

	addTrack(t, p, "extra")
	rev, created, err := p.Save("manual")
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, p.Restore(revs[0].ID))
	p.View(func(doc *annotation.Document) {
		require.Equal(t, imported, doc.TrackCount())
		require.Nil(t, doc.CategoryByName("extra"))
	})

	// The state before the restore is still available
	doc, _, err := p.DB.Load(rev.ID)
	require.NoError(t, err)
	require.NotNil(t, doc.CategoryByName("extra"))

	out := bytes.Buffer{}
	require.NoError(t, p.Export(&out, labelformat.FormatViper, nil))
	require.Contains(t, out.String(), "<viper")
}

func TestOpenLoadsDocumentFile(t *testing.T) {
	docFile := filepath.Join(t.TempDir(), "start.btd")
	src := annotation.CreateTestDocument(8, 1, 2, 30)
	require.NoError(t, codec.WriteFile(docFile, src, nil))

	p := createTestProject(t, docFile)
	p.View(func(doc *annotation.Document) {
		require.Equal(t, "", annotation.DocumentsEqual(src, doc))
	})
	require.NoError(t, p.Close())
}

func TestFailedImportIsPublished(t *testing.T) {
	p := createTestProject(t, "")
	for i := 0; i < 3; i++ {
		addTrack(t, p, "car")
	}
	_, _, err := p.Save("initial")
	require.NoError(t, err)
	_, ch := p.Subscribe()

	// A structurally invalid ViPER file is rejected before the document is touched
	res, err := p.Import(strings.NewReader("<notviper/>"), labelformat.FormatViper, nil)
	require.ErrorIs(t, err, labelformat.ErrSchemaViolation)
	require.False(t, res.Modified)
	require.Len(t, ch, 0)
	require.False(t, p.dirty)

	// A BB file is read straight into the document, so the first frame survives the error on the second
	res, err = p.Import(strings.NewReader("3\n0\n1\n1\n1;1;1;1\n1\nx\n"), labelformat.FormatBB, nil)
	require.ErrorIs(t, err, labelformat.ErrParse)
	require.True(t, res.Modified)
	require.Equal(t, 1, res.Tracks)

	ev := <-ch
	require.Equal(t, annotation.ChangeDocumentReset, ev.Kind)
	require.Equal(t, 1, ev.Delta)
	p.View(func(doc *annotation.Document) {
		require.Equal(t, 1, doc.TrackCount())
		require.Nil(t, doc.CategoryByName("car"))
	})
	events, _, complete := p.ChangesSince(ev.Seq - 1)
	require.True(t, complete)
	require.Len(t, events, 1)

	// Nothing was saved by the failed import, but the partial document is saved on shutdown
	require.True(t, p.dirty)
	revs, err := p.DB.List(0)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	require.NoError(t, p.Close())
	revs, err = p.DB.List(0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, "shutdown", revs[0].Message)
	require.Equal(t, 1, revs[0].Tracks)
}

func TestSetVideo(t *testing.T) {
	p := createTestProject(t, "")
	_, ch := p.Subscribe()

	v := annotation.VideoInfo{Filename: "a.mp4", FrameCount: 300, Width: 640, Height: 480}
	events := p.SetVideo(v)
	require.Len(t, events, 1)
	require.Equal(t, annotation.ChangeVideo, events[0].Kind)
	require.Equal(t, annotation.ChangeVideo, (<-ch).Kind)
	require.True(t, p.dirty)

	require.Len(t, p.SetVideo(v), 0)
	p.View(func(doc *annotation.Document) {
		require.Equal(t, v, doc.Video)
	})
}

func TestConcurrentMutationsArriveInOrder(t *testing.T) {
	p := createTestProject(t, "")
	_, ch := p.Subscribe()

	const writers = 8
	const perWriter = 20
	wg := sync.WaitGroup{}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				p.Mutate(func(doc *annotation.Document) ([]annotation.Change, error) {
					_, c := doc.NewTrack(doc.EnsureCategory("a"))
					return []annotation.Change{c}, nil
				})
			}
		}()
	}
	wg.Wait()

	for seq := int64(1); seq <= writers*perWriter; seq++ {
		ev := <-ch
		require.Equal(t, seq, ev.Seq)
	}
}
