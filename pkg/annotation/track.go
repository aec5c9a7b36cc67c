package annotation

import (
	"slices"
	"sort"
)

// Track is one annotated object through time.
// It stores a sparse set of boxes, keyed by frame number. Frames between
// stored boxes are either empty, or interpolated, depending on the type of
// the stored box that follows them.
//
// Every stored box is BoxSingle or BoxKey, and its Frame equals its map key.
type Track struct {
	id    int
	keys  []int // sorted ascending
	boxes map[int]Box
}

// NewTrack creates an empty track with the given id.
// Use Document.NewTrack to allocate a fresh id.
func NewTrack(id int) *Track {
	return &Track{
		id:    id,
		boxes: map[int]Box{},
	}
}

func (t *Track) ID() int {
	return t.id
}

// Number of stored boxes
func (t *Track) Len() int {
	return len(t.keys)
}

func (t *Track) IsEmpty() bool {
	return len(t.keys) == 0
}

// First returns the earliest stored box. The track must not be empty.
func (t *Track) First() Box {
	if len(t.keys) == 0 {
		panic("First() called on empty track")
	}
	return t.boxes[t.keys[0]]
}

// Last returns the latest stored box. The track must not be empty.
func (t *Track) Last() Box {
	if len(t.keys) == 0 {
		panic("Last() called on empty track")
	}
	return t.boxes[t.keys[len(t.keys)-1]]
}

// Keyframes returns the stored boxes in ascending frame order
func (t *Track) Keyframes() []Box {
	out := make([]Box, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.boxes[k])
	}
	return out
}

// Get returns the state of the track at 'frame'.
// A stored box is returned as is. Otherwise, if the next stored box is a key box
// (and there is a stored box before it), the result is interpolated between the two.
// In all other cases the result is a null box.
func (t *Track) Get(frame int) Box {
	if b, ok := t.boxes[frame]; ok {
		return b
	}
	// index of the smallest key > frame
	next := sort.SearchInts(t.keys, frame+1)
	if next == len(t.keys) || next == 0 {
		return NullBox(frame, t.id)
	}
	nb := t.boxes[t.keys[next]]
	if nb.Type != BoxKey {
		return NullBox(frame, t.id)
	}
	return Interpolate(frame, t.boxes[t.keys[next-1]], nb)
}

// Upsert stores b, replacing any box already stored on b.Frame.
// Virtual boxes are stored as single boxes, and null boxes are ignored.
func (t *Track) Upsert(b Box) Change {
	switch b.Type {
	case BoxNull:
		return Change{}
	case BoxVirtual:
		b.Type = BoxSingle
	}
	b.TrackID = t.id
	ch := Change{
		Kind:    ChangeBoxUpserted,
		TrackID: t.id,
		Frame:   b.Frame,
	}
	if _, exists := t.boxes[b.Frame]; !exists {
		i := sort.SearchInts(t.keys, b.Frame)
		t.keys = slices.Insert(t.keys, i, b.Frame)
		ch.Delta = 1
	}
	t.boxes[b.Frame] = b
	return ch
}

// DeleteAt removes the box stored on 'frame'. Deleting a frame with no stored box does nothing.
func (t *Track) DeleteAt(frame int) Change {
	if _, exists := t.boxes[frame]; !exists {
		return Change{}
	}
	delete(t.boxes, frame)
	i := sort.SearchInts(t.keys, frame)
	t.keys = slices.Delete(t.keys, i, i+1)
	return Change{
		Kind:    ChangeBoxDeleted,
		TrackID: t.id,
		Frame:   frame,
		Delta:   -1,
	}
}

// NextKeyBox finds the first stored key box after 'from', before 'limit'.
// A limit <= 0 means no limit.
func (t *Track) NextKeyBox(from, limit int) (Box, bool) {
	for i := sort.SearchInts(t.keys, from+1); i < len(t.keys); i++ {
		k := t.keys[i]
		if limit > 0 && k >= limit {
			break
		}
		if t.boxes[k].Type == BoxKey {
			return t.boxes[k], true
		}
	}
	return Box{}, false
}

// PrevKeyBox finds the last stored key box before 'from'
func (t *Track) PrevKeyBox(from int) (Box, bool) {
	for i := sort.SearchInts(t.keys, from) - 1; i >= 0; i-- {
		if b := t.boxes[t.keys[i]]; b.Type == BoxKey {
			return b, true
		}
	}
	return Box{}, false
}

func lessByFrame(a, b *Track) int {
	// Empty tracks sort after everything else
	if a.IsEmpty() || b.IsEmpty() {
		if a.IsEmpty() == b.IsEmpty() {
			return 0
		}
		if a.IsEmpty() {
			return 1
		}
		return -1
	}
	if a.First().Frame != b.First().Frame {
		return a.First().Frame - b.First().Frame
	}
	return a.Last().Frame - b.Last().Frame
}
