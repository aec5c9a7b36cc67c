package annotation

import (
	"math/rand"

	"github.com/cyclopcam/groundtruth/pkg/geom"
)

// CreateTestDocument builds a deterministic document with a mix of single and key boxes,
// in nCategories categories with nTracks tracks each.
// Used by the codec tests in other packages.
func CreateTestDocument(seed int64, nCategories, nTracks, nFrames int) *Document {
	rng := rand.New(rand.NewSource(seed))
	d := NewDocument()
	d.Video = VideoInfo{
		Filename:   "test-video.mp4",
		FrameCount: nFrames,
		Width:      640,
		Height:     480,
	}
	for ci := 0; ci < nCategories; ci++ {
		cat := d.EnsureCategory(string(rune('A'+ci)) + "-category")
		for ti := 0; ti < nTracks; ti++ {
			t, _ := d.NewTrack(cat)
			frame := rng.Intn(nFrames / 2)
			for frame < nFrames {
				typ := BoxSingle
				if rng.Intn(3) != 0 {
					typ = BoxKey
				}
				t.Upsert(Box{
					Type:  typ,
					Frame: frame,
					Rect:  geom.MakeRect(rng.Intn(600), rng.Intn(440), 1+rng.Intn(40), 1+rng.Intn(40)),
				})
				frame += 1 + rng.Intn(8)
			}
		}
	}
	return d
}

// MakeTrack builds a track from a list of boxes. Convenient in tests.
func MakeTrack(id int, boxes ...Box) *Track {
	t := NewTrack(id)
	for _, b := range boxes {
		t.Upsert(b)
	}
	return t
}

func Key(frame, x, y, w, h int) Box {
	return Box{Type: BoxKey, Frame: frame, Rect: geom.MakeRect(x, y, w, h)}
}

func Single(frame, x, y, w, h int) Box {
	return Box{Type: BoxSingle, Frame: frame, Rect: geom.MakeRect(x, y, w, h)}
}

// DocumentsEqual compares the observable state of two documents: names, order, ids and stored boxes.
// Returns an empty string when they are equal, otherwise a description of the first difference.
func DocumentsEqual(a, b *Document) string {
	if a.Video.Filename != b.Video.Filename {
		return "linked video differs: " + a.Video.Filename + " vs " + b.Video.Filename
	}
	if len(a.Categories) != len(b.Categories) {
		return "category count differs"
	}
	for i := range a.Categories {
		ca, cb := a.Categories[i], b.Categories[i]
		if ca.Name != cb.Name {
			return "category name differs: " + ca.Name + " vs " + cb.Name
		}
		if ca.Len() != cb.Len() {
			return "track count differs in " + ca.Name
		}
		for j := 0; j < ca.Len(); j++ {
			ta, tb := ca.At(j), cb.At(j)
			if ta.ID() != tb.ID() {
				return "track id differs in " + ca.Name
			}
			ka, kb := ta.Keyframes(), tb.Keyframes()
			if len(ka) != len(kb) {
				return "keyframe count differs in " + ca.Name
			}
			for k := range ka {
				if ka[k] != kb[k] {
					return "keyframe differs: " + ka[k].String() + " vs " + kb[k].String()
				}
			}
		}
	}
	return ""
}
