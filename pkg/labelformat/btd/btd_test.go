package btd

import (
	"bytes"
	"testing"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for seed := int64(1); seed < 6; seed++ {
		doc := annotation.CreateTestDocument(seed, 3, 5, 200)
		doc.IDs.Reset(1000 + int(seed))

		buf := bytes.Buffer{}
		require.NoError(t, Encode(&buf, doc, nil))
		t.Logf("Seed %v: %v tracks, %v boxes, %v bytes", seed, doc.TrackCount(), doc.BoxCount(), buf.Len())

		// Encoding does not consume an id
		require.Equal(t, 1000+int(seed), doc.IDs.Peek())

		dec, err := Decode(&buf, nil)
		require.NoError(t, err)
		require.Equal(t, "", annotation.DocumentsEqual(doc, dec))
		require.Equal(t, doc.IDs.Peek(), dec.IDs.Peek())
	}
}

func TestExactBytes(t *testing.T) {
	doc := annotation.NewDocument()
	doc.Video.Filename = "v"
	doc.IDs.Reset(2)
	doc.EnsureCategory("c").AddTrack(annotation.MakeTrack(1, annotation.Key(3, 10, 20, 5, 6)))

	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	expect := []byte{
		'B', 'T', 'D', 1,
		0, 0, 0, 2, 0, 'v', // filename
		0, 0, 0, 2, // counter
		0, 0, 0, 1, // category count
		0, 0, 0, 2, 0, 'c', // category name
		0, 0, 0, 1, // track count
		0, 0, 0, 1, // track id
		0, 0, 0, 1, // box count
		2,          // key box
		0, 0, 0, 3, // frame
		0, 0, 0, 10, 0, 0, 0, 20, 0, 0, 0, 14, 0, 0, 0, 25, // left, top, right, bottom
	}
	require.Equal(t, expect, buf.Bytes())
}

func TestDuplicateTrackIDs(t *testing.T) {
	doc := annotation.NewDocument()
	c := doc.EnsureCategory("c")
	c.AddTrack(annotation.MakeTrack(3, annotation.Key(1, 0, 0, 5, 5)))
	c.AddTrack(annotation.MakeTrack(3, annotation.Key(2, 1, 1, 5, 5)))
	doc.IDs.Reset(4)

	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	dec, err := Decode(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, 2, dec.TrackCount())
	require.Equal(t, 2, dec.BoxCount())
	require.Equal(t, "", annotation.DocumentsEqual(doc, dec))
}

func TestRestoredCounterPointsAtUsedID(t *testing.T) {
	doc := annotation.NewDocument()
	doc.EnsureCategory("c").AddTrack(annotation.MakeTrack(0, annotation.Single(4, 0, 0, 5, 5)))
	doc.IDs.Reset(0)

	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	dec, err := Decode(&buf, nil)
	require.NoError(t, err)

	// The counter comes back exactly as stored, but a new track must not take over track 0
	require.Equal(t, 0, dec.IDs.Peek())
	tr, _ := dec.NewTrack(dec.Categories[0])
	require.Equal(t, 1, tr.ID())
	require.Equal(t, 2, dec.TrackCount())
	require.Equal(t, 1, dec.BoxCount())
	require.Equal(t, 4, dec.Categories[0].Track(0).First().Frame)
}

func TestNullString(t *testing.T) {
	doc := annotation.NewDocument()
	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, buf.Bytes()[4:8])
	dec, err := Decode(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	require.Equal(t, "", dec.Video.Filename)

	// Non-ASCII survives the UTF-16 trip
	doc.Video.Filename = "vidéo-日本.mp4"
	buf.Reset()
	require.NoError(t, Encode(&buf, doc, nil))
	dec, err = Decode(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, doc.Video.Filename, dec.Video.Filename)
}

func TestDecodeErrors(t *testing.T) {
	doc := annotation.CreateTestDocument(9, 2, 2, 30)
	buf := bytes.Buffer{}
	require.NoError(t, Encode(&buf, doc, nil))
	raw := buf.Bytes()

	_, err := Decode(bytes.NewReader([]byte("XYZ\x01")), nil)
	require.ErrorIs(t, err, labelformat.ErrMalformedHeader)

	_, err = Decode(bytes.NewReader([]byte("BTD\x02")), nil)
	require.ErrorIs(t, err, labelformat.ErrUnsupportedVersion)
	require.ErrorIs(t, err, labelformat.ErrMalformedHeader)

	// Every truncation past the header is an unexpected EOF
	for n := 4; n < len(raw); n += 7 {
		_, err = Decode(bytes.NewReader(raw[:n]), nil)
		require.ErrorIs(t, err, labelformat.ErrUnexpectedEOF, "truncated at %v", n)
	}

	// Corrupt the type of the first box
	small := annotation.NewDocument()
	small.EnsureCategory("c").AddTrack(annotation.MakeTrack(0, annotation.Single(0, 1, 1, 1, 1)))
	buf.Reset()
	require.NoError(t, Encode(&buf, small, nil))
	corrupt := bytes.Clone(buf.Bytes())
	typeOffset := 4 + 4 + 4 + 4 + 6 + 4 + 4 + 4
	require.Equal(t, byte(1), corrupt[typeOffset])
	corrupt[typeOffset] = 3
	_, err = Decode(bytes.NewReader(corrupt), nil)
	require.ErrorIs(t, err, labelformat.ErrParse)
}

func TestCancel(t *testing.T) {
	doc := annotation.CreateTestDocument(3, 2, 4, 50)
	buf := bytes.Buffer{}
	err := Encode(&buf, doc, &progress.CancelAfter{N: 3})
	require.ErrorIs(t, err, labelformat.ErrUserCancelled)
	require.Equal(t, 0, buf.Len())

	require.NoError(t, Encode(&buf, doc, nil))
	dec, err := Decode(&buf, &progress.CancelAfter{N: 3})
	require.ErrorIs(t, err, labelformat.ErrUserCancelled)
	require.Nil(t, dec)
}
