package annotation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cyclopcam/groundtruth/pkg/idgen"
)

var ErrCategoryExists = errors.New("Category already exists")
var ErrCategoryNotFound = errors.New("Category not found")
var ErrTrackNotFound = errors.New("Track not found")

// VideoInfo describes the video that a document annotates.
// It is supplied by whoever decodes the video, and is never derived from the annotations,
// except for FrameCount when no video is loaded (see UpdateFrameCount).
type VideoInfo struct {
	Filename   string `json:"filename"`
	FrameCount int    `json:"frameCount"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// HasSize is true when the frame dimensions are known (ie a video has been opened)
func (v VideoInfo) HasSize() bool {
	return v.Width > 0 && v.Height > 0
}

// Document is the root of the annotation model.
// A Document is not safe for concurrent use.
type Document struct {
	Categories []*Category
	IDs        idgen.Counter // Source of track ids
	Video      VideoInfo
}

func NewDocument() *Document {
	return &Document{}
}

// LinkedVideo is the filename of the video that the annotations belong to
func (d *Document) LinkedVideo() string {
	return d.Video.Filename
}

// Clear drops all categories and resets the id counter to zero.
// The linked video is retained.
func (d *Document) Clear() Change {
	n := d.BoxCount()
	d.Categories = nil
	d.IDs.Reset(0)
	return Change{Kind: ChangeDocumentReset, Delta: -n}
}

// CategoryIndex returns -1 if there is no category with the given name
func (d *Document) CategoryIndex(name string) int {
	return slices.IndexFunc(d.Categories, func(c *Category) bool { return c.Name == name })
}

// CategoryByName returns nil if there is no category with the given name
func (d *Document) CategoryByName(name string) *Category {
	if i := d.CategoryIndex(name); i >= 0 {
		return d.Categories[i]
	}
	return nil
}

// AddCategory appends a new, empty category. Category names are unique.
func (d *Document) AddCategory(name string) (*Category, Change, error) {
	if d.CategoryIndex(name) >= 0 {
		return nil, Change{}, fmt.Errorf("%w: '%v'", ErrCategoryExists, name)
	}
	c := NewCategory(name)
	d.Categories = append(d.Categories, c)
	return c, Change{Kind: ChangeCategoryAdded, Category: name, Delta: 1}, nil
}

// EnsureCategory returns the category with the given name, creating it if necessary
func (d *Document) EnsureCategory(name string) *Category {
	if c := d.CategoryByName(name); c != nil {
		return c
	}
	c, _, _ := d.AddCategory(name)
	return c
}

// StartCategory creates a category that already holds one empty track, ready for drawing.
func (d *Document) StartCategory(name string) (*Category, *Track, []Change, error) {
	c, ch, err := d.AddCategory(name)
	if err != nil {
		return nil, nil, nil, err
	}
	t, tch := d.NewTrack(c)
	return c, t, []Change{ch, tch}, nil
}

// DeleteCategory removes the category at 'index', and all of its tracks
func (d *Document) DeleteCategory(index int) Change {
	if index < 0 || index >= len(d.Categories) {
		return Change{}
	}
	c := d.Categories[index]
	d.Categories = slices.Delete(d.Categories, index, index+1)
	return Change{Kind: ChangeCategoryRemoved, Category: c.Name, Delta: -c.BoxCount()}
}

// RenameCategory fails if another category already has the new name
func (d *Document) RenameCategory(index int, name string) (Change, error) {
	if index < 0 || index >= len(d.Categories) {
		return Change{}, ErrCategoryNotFound
	}
	if existing := d.CategoryIndex(name); existing >= 0 && existing != index {
		return Change{}, fmt.Errorf("%w: '%v'", ErrCategoryExists, name)
	}
	d.Categories[index].Name = name
	return Change{Kind: ChangeCategoryRenamed, Category: name}, nil
}

// NewTrack appends an empty track with a freshly allocated id to 'cat'.
// A restored counter can point at ids that are already taken, and those are skipped.
func (d *Document) NewTrack(cat *Category) (*Track, Change) {
	id := d.IDs.Next()
	for d.hasTrack(id) {
		id = d.IDs.Next()
	}
	t := NewTrack(id)
	ch := cat.AddTrack(t)
	return t, ch
}

func (d *Document) hasTrack(id int) bool {
	_, t := d.FindTrack(id)
	return t != nil
}

// FindTrack searches every category for the track.
// Returns (-1, nil) if the track does not exist.
func (d *Document) FindTrack(id int) (int, *Track) {
	for i, c := range d.Categories {
		if t := c.Track(id); t != nil {
			return i, t
		}
	}
	return -1, nil
}

func (d *Document) RemoveTrack(id int) Change {
	ci, _ := d.FindTrack(id)
	if ci < 0 {
		return Change{}
	}
	return d.Categories[ci].RemoveTrack(id)
}

// Upsert stores a box on the given track
func (d *Document) Upsert(trackID int, b Box) (Change, error) {
	ci, t := d.FindTrack(trackID)
	if t == nil {
		return Change{}, fmt.Errorf("%w: %v", ErrTrackNotFound, trackID)
	}
	ch := t.Upsert(b)
	ch.Category = d.Categories[ci].Name
	return ch, nil
}

// DeleteBox removes the box stored on 'frame' of the given track
func (d *Document) DeleteBox(trackID, frame int) (Change, error) {
	ci, t := d.FindTrack(trackID)
	if t == nil {
		return Change{}, fmt.Errorf("%w: %v", ErrTrackNotFound, trackID)
	}
	ch := t.DeleteAt(frame)
	ch.Category = d.Categories[ci].Name
	return ch, nil
}

// MoveTracks moves tracks from one category to another, appending them in the order
// in which they appear in the source category.
func (d *Document) MoveTracks(from int, ids []int, to int) ([]Change, error) {
	if from < 0 || from >= len(d.Categories) || to < 0 || to >= len(d.Categories) {
		return nil, ErrCategoryNotFound
	}
	if from == to {
		return nil, nil
	}
	src := d.Categories[from]
	dst := d.Categories[to]
	move := map[int]bool{}
	for _, id := range ids {
		move[id] = true
	}
	var out []Change
	for _, t := range src.Tracks() {
		if !move[t.ID()] {
			continue
		}
		src.TakeTrack(t.ID())
		dst.AddTrack(t)
		out = append(out, Change{Kind: ChangeTrackMoved, Category: dst.Name, TrackID: t.ID()})
	}
	return out, nil
}

// VisibleBoxes returns the non-null boxes of every track at 'frame',
// category by category, in display order.
func (d *Document) VisibleBoxes(frame int) []Box {
	var out []Box
	for _, c := range d.Categories {
		out = append(out, c.VisibleBoxes(frame)...)
	}
	return out
}

// FrameSpan is the largest FrameSpan of any category
func (d *Document) FrameSpan() int {
	span := 0
	for _, c := range d.Categories {
		span = max(span, c.FrameSpan())
	}
	return span
}

// UpdateFrameCount sets Video.FrameCount from the annotations, but only when
// there is no video with a known frame size.
func (d *Document) UpdateFrameCount() {
	if !d.Video.HasSize() {
		d.Video.FrameCount = d.FrameSpan()
	}
}

func (d *Document) BoxCount() int {
	n := 0
	for _, c := range d.Categories {
		n += c.BoxCount()
	}
	return n
}

func (d *Document) TrackCount() int {
	n := 0
	for _, c := range d.Categories {
		n += c.Len()
	}
	return n
}

func (d *Document) SortByID() {
	for _, c := range d.Categories {
		c.SortByID()
	}
}

func (d *Document) SortByFrame() {
	for _, c := range d.Categories {
		c.SortByFrame()
	}
}
