package bb

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
	"github.com/stretchr/testify/require"
)

func encodeString(t *testing.T, doc *annotation.Document) string {
	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	return buf.String()
}

func TestInterpolatedGap(t *testing.T) {
	for gap := 1; gap < 8; gap++ {
		tr := annotation.MakeTrack(0, annotation.Key(2, 0, 0, 10, 10), annotation.Key(2+gap, 20, 20, 10, 10))
		runs := splitTrack(tr)
		require.Len(t, runs, 1)
		require.Len(t, runs[0].boxes, gap+1)
		synth := 0
		for i, b := range runs[0].boxes {
			require.Equal(t, 2+i, b.Frame)
			if b.Type == annotation.BoxVirtual {
				synth++
			}
		}
		require.Equal(t, gap-1, synth)
	}
}

func TestSplitOnSingleGap(t *testing.T) {
	tr := annotation.MakeTrack(0,
		annotation.Single(0, 0, 0, 1, 1),
		annotation.Single(1, 0, 0, 1, 1),
		annotation.Single(4, 0, 0, 1, 1),
		annotation.Key(6, 0, 0, 1, 1),
	)
	runs := splitTrack(tr)
	require.Len(t, runs, 2)
	require.Len(t, runs[0].boxes, 2)
	require.Len(t, runs[1].boxes, 3)
	require.Equal(t, 4, runs[1].boxes[0].Frame)
	require.Len(t, splitTrack(annotation.NewTrack(1)), 0)
}

func TestEncodeText(t *testing.T) {
	doc := annotation.NewDocument()
	doc.Video.FrameCount = 3
	a := doc.EnsureCategory("a")
	a.AddTrack(annotation.MakeTrack(0, annotation.Single(1, 1, 2, 3, 4)))
	doc.EnsureCategory("b").AddTrack(annotation.MakeTrack(1, annotation.Single(1, 5, 6, 7, 8), annotation.Single(2, 5, 6, 7, 9)))
	// Starts beyond the frame count, so it is dropped
	a.AddTrack(annotation.MakeTrack(2, annotation.Single(3, 0, 0, 1, 1)))

	expect := strings.Join([]string{
		"3",
		"0", "0",
		"1", "2",
		"2",
		"5.0000;6.0000;7.0000;8.0000",
		"5.0000;6.0000;7.0000;9.0000",
		"1",
		"1.0000;2.0000;3.0000;4.0000",
		"2", "0",
		"",
	}, "\n")
	require.Equal(t, expect, encodeString(t, doc))
}

func TestDecode(t *testing.T) {
	text := "3\n0\n1\n2\n12.9;-1.5;10;10\n13;0;10;10\n1\n0\n2\n1\n1\n1;1;1;1\n"
	doc := annotation.NewDocument()
	doc.IDs.Reset(50)
	doc.EnsureCategory("old")

	res, err := Decode(strings.NewReader(text), doc, nil)
	require.NoError(t, err)
	require.False(t, res.Cancelled)
	require.Equal(t, 2, res.Tracks)
	require.Equal(t, 3, doc.Video.FrameCount)
	require.Len(t, doc.Categories, 1)
	cat := doc.Categories[0]
	require.Equal(t, ImportCategory, cat.Name)

	// The id counter restarts
	require.Equal(t, 0, cat.At(0).ID())
	require.Equal(t, 1, cat.At(1).ID())

	b := cat.At(0).Get(0)
	require.Equal(t, annotation.BoxSingle, b.Type)
	require.Equal(t, 12, b.Rect.X)
	require.Equal(t, -1, b.Rect.Y)
	require.Equal(t, 13, cat.At(0).Get(1).Rect.X)
	require.Equal(t, 2, cat.At(1).First().Frame)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		text   string
		target error
		line   int
	}{
		{"x\n", labelformat.ErrParse, 1},
		{"2\n0\n0\n7\n", labelformat.ErrParse, 4},
		{"1\n0\n1\n1\n1;2;x;4\n", labelformat.ErrParse, 5},
		{"1\n0\n1\n1\n1;2;3\n", labelformat.ErrParse, 5},
		{"1\n0\nz\n", labelformat.ErrParse, 3},
		{"2\n0\n0\n", labelformat.ErrUnexpectedEOF, 0},
		{"1\n0\n1\n2\n1;1;1;1\n", labelformat.ErrUnexpectedEOF, 0},
	}
	for _, c := range cases {
		doc := annotation.NewDocument()
		_, err := Decode(strings.NewReader(c.text), doc, nil)
		require.ErrorIs(t, err, c.target, c.text)
		if c.line != 0 {
			var pe *labelformat.ParseError
			require.ErrorAs(t, err, &pe)
			require.Equal(t, c.line, pe.Line, c.text)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	doc := annotation.CreateTestDocument(4, 2, 6, 120)
	doc.Video.FrameCount = doc.FrameSpan()
	text := encodeString(t, doc)

	imported := annotation.NewDocument()
	_, err := Decode(strings.NewReader(text), imported, nil)
	require.NoError(t, err)

	// Categories and interpolation are flattened, but the pixels on every frame survive
	for f := 0; f < doc.Video.FrameCount; f++ {
		require.ElementsMatch(t, rects(doc.VisibleBoxes(f)), rects(imported.VisibleBoxes(f)), "frame %v", f)
	}

	// Each trip reverses the order of objects within a frame, so two trips restore the original text
	text2 := encodeString(t, imported)
	imported2 := annotation.NewDocument()
	_, err = Decode(strings.NewReader(text2), imported2, nil)
	require.NoError(t, err)
	require.Equal(t, text, encodeString(t, imported2))
}

func TestCancel(t *testing.T) {
	doc := annotation.CreateTestDocument(4, 2, 6, 120)
	buf := bytes.Buffer{}
	require.ErrorIs(t, Encode(&buf, doc, &progress.CancelAfter{N: 2}), labelformat.ErrUserCancelled)
	require.Equal(t, 0, buf.Len())

	doc.Video.FrameCount = doc.FrameSpan()
	require.NoError(t, Encode(&buf, doc, nil))
	imported := annotation.NewDocument()
	res, err := Decode(&buf, imported, &progress.CancelAfter{N: 60})
	require.NoError(t, err)
	require.True(t, res.Cancelled)
	require.Equal(t, res.Tracks, imported.TrackCount())
}

func rects(boxes []annotation.Box) []string {
	out := []string{}
	for _, b := range boxes {
		out = append(out, b.Rect.String())
	}
	return out
}
