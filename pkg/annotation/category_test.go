package annotation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameSpan(t *testing.T) {
	c := NewCategory("x")
	require.Equal(t, 0, c.FrameSpan())
	c.AddTrack(MakeTrack(1, Single(5, 0, 0, 1, 1)))
	c.AddTrack(MakeTrack(2, Single(1, 0, 0, 1, 1), Single(9, 0, 0, 1, 1)))
	c.AddTrack(MakeTrack(3, Single(2, 0, 0, 1, 1)))
	c.AddTrack(NewTrack(4))
	require.Equal(t, 10, c.FrameSpan())
}

func TestVisibleBoxesOrder(t *testing.T) {
	c := NewCategory("x")
	c.AddTrack(MakeTrack(7, Single(3, 0, 0, 1, 1)))
	c.AddTrack(MakeTrack(2, Key(0, 0, 0, 1, 1), Key(6, 6, 6, 1, 1)))
	c.AddTrack(MakeTrack(5, Single(4, 0, 0, 1, 1)))

	v := c.VisibleBoxes(3)
	require.Len(t, v, 2)
	require.Equal(t, 7, v[0].TrackID)
	require.Equal(t, BoxSingle, v[0].Type)
	require.Equal(t, 2, v[1].TrackID)
	require.Equal(t, BoxVirtual, v[1].Type)

	require.Len(t, c.VisibleBoxes(100), 0)
}

func TestCategoryTracks(t *testing.T) {
	c := NewCategory("x")
	c.AddTrack(MakeTrack(3, Single(9, 0, 0, 1, 1)))
	c.AddTrack(MakeTrack(1, Single(2, 0, 0, 1, 1), Single(5, 0, 0, 1, 1)))
	c.AddTrack(MakeTrack(2, Single(2, 0, 0, 1, 1), Single(4, 0, 0, 1, 1)))
	c.AddTrack(NewTrack(0))

	c.SortByID()
	require.Equal(t, []int{0, 1, 2, 3}, trackIDs(c))

	c.SortByFrame()
	require.Equal(t, []int{2, 1, 3, 0}, trackIDs(c))

	ch := c.RemoveTrack(2)
	require.Equal(t, ChangeTrackRemoved, ch.Kind)
	require.Equal(t, -2, ch.Delta)
	require.Nil(t, c.Track(2))
	require.Equal(t, -1, c.IndexOf(2))
	require.False(t, c.RemoveTrack(2).Changed())

	changes := c.DeleteBoxes([]Cell{{TrackID: 3, Frame: 9}, {TrackID: 3, Frame: 8}, {TrackID: 99, Frame: 1}})
	require.Len(t, changes, 1)
	require.Equal(t, "x", changes[0].Category)
	require.True(t, c.Track(3).IsEmpty())
}

func trackIDs(c *Category) []int {
	ids := []int{}
	for _, t := range c.Tracks() {
		ids = append(ids, t.ID())
	}
	return ids
}

func TestDuplicateTrackIDs(t *testing.T) {
	c := NewCategory("x")
	c.AddTrack(MakeTrack(1, Single(2, 0, 0, 1, 1), Single(5, 0, 0, 1, 1)))
	ch := c.AddTrack(MakeTrack(1, Single(7, 0, 0, 1, 1)))
	require.Equal(t, 1, ch.Delta)
	require.Equal(t, 2, c.Len())
	require.Equal(t, 3, c.BoxCount())
	require.Equal(t, 0, c.IndexOf(1))
	require.Equal(t, 2, c.Track(1).Len())

	// The second track only becomes addressable once the first is gone
	require.Equal(t, -2, c.RemoveTrack(1).Delta)
	require.Equal(t, 1, c.Track(1).Len())
	require.Equal(t, 7, c.Track(1).First().Frame)
}
