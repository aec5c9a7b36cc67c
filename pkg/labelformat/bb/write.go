package bb

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

// A run of boxes on consecutive frames
type run struct {
	boxes []annotation.Box
}

// splitTrack breaks a track into runs of consecutive frames.
// Gaps that end in a key box are filled with interpolated boxes. Other gaps start a new run.
func splitTrack(track *annotation.Track) []*run {
	keys := track.Keyframes()
	if len(keys) == 0 {
		return nil
	}
	current := &run{}
	runs := []*run{current}
	cursor := keys[0].Frame
	for i, b := range keys {
		if b.Frame != cursor && b.Type == annotation.BoxKey {
			current.boxes = append(current.boxes, annotation.InterpolateRange(keys[i-1], b)...)
			current.boxes = append(current.boxes, b)
			cursor = b.Frame
		} else if b.Frame != cursor {
			current = &run{boxes: []annotation.Box{b}}
			runs = append(runs, current)
			cursor = b.Frame
		} else {
			current.boxes = append(current.boxes, b)
		}
		cursor++
	}
	return runs
}

// Encode writes every track of every category, for frames [0, doc.Video.FrameCount).
// Runs that start on or after the frame count are dropped.
// Within a frame, objects are written in the reverse of the order in which they were built.
// Nothing is written if the sink cancels.
func Encode(w io.Writer, doc *annotation.Document, sink progress.Sink) error {
	sink = progress.OrNop(sink)
	sink.SetMax(doc.TrackCount())

	frameCount := doc.Video.FrameCount
	byStart := map[int][]*run{}
	done := 0
	for _, cat := range doc.Categories {
		for _, track := range cat.Tracks() {
			if sink.Cancelled() {
				return labelformat.ErrUserCancelled
			}
			for _, r := range splitTrack(track) {
				start := r.boxes[0].Frame
				byStart[start] = append(byStart[start], r)
			}
			done++
			sink.SetValue(done)
		}
	}

	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "%d\n", frameCount)
	for frame := 0; frame < frameCount; frame++ {
		runs := byStart[frame]
		fmt.Fprintf(out, "%d\n%d\n", frame, len(runs))
		for i := len(runs) - 1; i >= 0; i-- {
			fmt.Fprintf(out, "%d\n", len(runs[i].boxes))
			for _, b := range runs[i].boxes {
				fmt.Fprintf(out, "%.4f;%.4f;%.4f;%.4f\n", float64(b.Rect.X), float64(b.Rect.Y), float64(b.Rect.Width), float64(b.Rect.Height))
			}
		}
	}
	return out.Flush()
}
