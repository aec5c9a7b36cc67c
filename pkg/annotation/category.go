package annotation

import (
	"slices"
)

// Category is a named, ordered group of tracks.
// Tracks are held in display order. Track ids are normally unique, but files written by
// other tools can repeat an id, so nothing here assumes that they are.
type Category struct {
	Name   string
	tracks []*Track
}

func NewCategory(name string) *Category {
	return &Category{
		Name: name,
	}
}

// Number of tracks
func (c *Category) Len() int {
	return len(c.tracks)
}

// IsEmpty is true when the category holds no tracks
func (c *Category) IsEmpty() bool {
	return len(c.tracks) == 0
}

// Tracks returns the tracks in display order
func (c *Category) Tracks() []*Track {
	return slices.Clone(c.tracks)
}

// At returns the track in display position i
func (c *Category) At(i int) *Track {
	return c.tracks[i]
}

// Track returns the first track with the given id, or nil if there is none in this category
func (c *Category) Track(id int) *Track {
	if i := c.IndexOf(id); i >= 0 {
		return c.tracks[i]
	}
	return nil
}

// IndexOf returns the display position of the first track with the given id, or -1
func (c *Category) IndexOf(id int) int {
	return slices.IndexFunc(c.tracks, func(t *Track) bool { return t.ID() == id })
}

// AddTrack appends t. Existing tracks are never replaced, even if one has the same id.
func (c *Category) AddTrack(t *Track) Change {
	c.tracks = append(c.tracks, t)
	return Change{
		Kind:     ChangeTrackAdded,
		Category: c.Name,
		TrackID:  t.ID(),
		Delta:    t.Len(),
	}
}

// TakeTrack detaches the track from this category and returns it, or nil if it is not here
func (c *Category) TakeTrack(id int) *Track {
	i := c.IndexOf(id)
	if i < 0 {
		return nil
	}
	t := c.tracks[i]
	c.tracks = slices.Delete(c.tracks, i, i+1)
	return t
}

func (c *Category) RemoveTrack(id int) Change {
	t := c.TakeTrack(id)
	if t == nil {
		return Change{}
	}
	return Change{
		Kind:     ChangeTrackRemoved,
		Category: c.Name,
		TrackID:  id,
		Delta:    -t.Len(),
	}
}

// VisibleBoxes returns the state of every track at 'frame', in display order.
// Tracks that are null at 'frame' are omitted.
func (c *Category) VisibleBoxes(frame int) []Box {
	var out []Box
	for _, t := range c.tracks {
		if b := t.Get(frame); !b.IsNull() {
			out = append(out, b)
		}
	}
	return out
}

// FrameSpan is one past the last stored frame of any track, or 0 if nothing is stored.
func (c *Category) FrameSpan() int {
	span := 0
	for _, t := range c.tracks {
		if !t.IsEmpty() {
			span = max(span, t.Last().Frame+1)
		}
	}
	return span
}

// Count of stored boxes across all tracks
func (c *Category) BoxCount() int {
	n := 0
	for _, t := range c.tracks {
		n += t.Len()
	}
	return n
}

func (c *Category) SortByID() Change {
	slices.SortStableFunc(c.tracks, func(a, b *Track) int { return a.ID() - b.ID() })
	return Change{Kind: ChangeOrder, Category: c.Name}
}

// SortByFrame orders tracks by their first stored frame, and then by their last.
// The sort is stable, and empty tracks go to the end.
func (c *Category) SortByFrame() Change {
	slices.SortStableFunc(c.tracks, lessByFrame)
	return Change{Kind: ChangeOrder, Category: c.Name}
}

// Cell addresses one frame of one track
type Cell struct {
	TrackID int `json:"trackID"`
	Frame   int `json:"frame"`
}

// DeleteBoxes removes the stored boxes at each cell.
// Cells that don't address a stored box are ignored.
func (c *Category) DeleteBoxes(cells []Cell) []Change {
	var out []Change
	for _, cell := range cells {
		t := c.Track(cell.TrackID)
		if t == nil {
			continue
		}
		if ch := t.DeleteAt(cell.Frame); ch.Changed() {
			ch.Category = c.Name
			out = append(out, ch)
		}
	}
	return out
}
