package labeldb

import (
	"path/filepath"
	"testing"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T, maxRevisions int) *LabelDB {
	db, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "test-labeldb.sqlite"), maxRevisions)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestSaveAndLoad(t *testing.T) {
	db := createTestDB(t, 0)
	_, err := db.Latest()
	require.ErrorIs(t, err, ErrRevisionNotFound)

	doc := annotation.CreateTestDocument(1, 2, 3, 50)
	rev1, created, err := db.Save(doc, "first")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, doc.BoxCount(), rev1.Boxes)
	require.Equal(t, 6, rev1.Tracks)
	require.Len(t, rev1.HashHex(), 64)

	// Nothing changed
	rev, created, err := db.Save(doc, "second")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, rev1.ID, rev.ID)

	doc.Categories[0].At(0).Upsert(annotation.Key(49, 1, 2, 3, 4))
	rev2, created, err := db.Save(doc, "third")
	require.NoError(t, err)
	require.True(t, created)

	revs, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, rev2.ID, revs[0].ID)
	require.Equal(t, "first", revs[1].Message)
	require.Nil(t, revs[0].Document)

	loaded, _, err := db.Load(rev1.ID)
	require.NoError(t, err)
	require.Equal(t, "", annotation.DocumentsEqual(annotation.CreateTestDocument(1, 2, 3, 50), loaded))
	loaded, _, err = db.Load(rev2.ID)
	require.NoError(t, err)
	require.Equal(t, "", annotation.DocumentsEqual(doc, loaded))
	require.Equal(t, doc.IDs.Peek(), loaded.IDs.Peek())

	_, _, err = db.Load(999)
	require.ErrorIs(t, err, ErrRevisionNotFound)
}

func TestPurge(t *testing.T) {
	db := createTestDB(t, 2)
	doc := annotation.NewDocument()
	cat := doc.EnsureCategory("a")
	track, _ := doc.NewTrack(cat)
	var last int64
	for i := 0; i < 5; i++ {
		track.Upsert(annotation.Single(i, 0, 0, 5, 5))
		rev, created, err := db.Save(doc, "autosave")
		require.NoError(t, err)
		require.True(t, created)
		last = rev.ID
	}
	revs, err := db.List(0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.Equal(t, last, revs[0].ID)
	require.Equal(t, last-1, revs[1].ID)
}
