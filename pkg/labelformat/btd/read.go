package btd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

type reader struct {
	r       *bufio.Reader
	scratch [4]byte
}

func eofError(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w while reading %v", labelformat.ErrUnexpectedEOF, what)
	}
	return err
}

func (r *reader) u8(what string) (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, eofError(err, what)
	}
	return b, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if _, err := io.ReadFull(r.r, r.scratch[:]); err != nil {
		return 0, eofError(err, what)
	}
	return binary.BigEndian.Uint32(r.scratch[:]), nil
}

func (r *reader) i32(what string) (int32, error) {
	v, err := r.u32(what)
	return int32(v), err
}

func (r *reader) str(what string) (string, error) {
	n, err := r.u32(what)
	if err != nil {
		return "", err
	}
	if n == nullStringLength {
		return "", nil
	}
	if n > maxStringBytes || n%2 != 0 {
		return "", &labelformat.ParseError{Locator: what, Field: "string length", Value: fmt.Sprint(n)}
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r.r, raw); err != nil {
		return "", eofError(err, what)
	}
	dec, err := utf16be.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &labelformat.ParseError{Locator: what, Field: "UTF-16 string", Err: err}
	}
	return string(dec), nil
}

// Decode reads a complete document.
// The result is a new document, so a failure never leaves a half-loaded document behind.
// The id counter is restored exactly as stored, even if it is lower than ids in the file.
func Decode(r io.Reader, sink progress.Sink) (*annotation.Document, error) {
	sink = progress.OrNop(sink)
	in := &reader{r: bufio.NewReader(r)}

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(in.r, magic); err != nil || string(magic) != Magic {
		return nil, fmt.Errorf("%w: not a BTD file", labelformat.ErrMalformedHeader)
	}
	version, err := in.u8("version")
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("%w %v", labelformat.ErrUnsupportedVersion, version)
	}

	doc := annotation.NewDocument()
	if doc.Video.Filename, err = in.str("video filename"); err != nil {
		return nil, err
	}
	counter, err := in.u32("id counter")
	if err != nil {
		return nil, err
	}
	nCategories, err := in.u32("category count")
	if err != nil {
		return nil, err
	}

	done := 0
	for ci := uint32(0); ci < nCategories; ci++ {
		catWhere := fmt.Sprintf("category %v", ci)
		name, err := in.str(catWhere + " name")
		if err != nil {
			return nil, err
		}
		// Names are unique in a well-formed file. If they're not, merge rather than fail.
		cat := doc.EnsureCategory(name)
		nTracks, err := in.u32(catWhere + " track count")
		if err != nil {
			return nil, err
		}
		sink.SetMax(done + int(nTracks))
		for ti := uint32(0); ti < nTracks; ti++ {
			if sink.Cancelled() {
				return nil, labelformat.ErrUserCancelled
			}
			track, err := readTrack(in, fmt.Sprintf("%v track %v", catWhere, ti))
			if err != nil {
				return nil, err
			}
			cat.AddTrack(track)
			done++
			sink.SetValue(done)
		}
	}

	doc.IDs.Reset(int(counter))
	return doc, nil
}

func readTrack(in *reader, where string) (*annotation.Track, error) {
	id, err := in.u32(where + " id")
	if err != nil {
		return nil, err
	}
	nBoxes, err := in.u32(where + " box count")
	if err != nil {
		return nil, err
	}
	track := annotation.NewTrack(int(id))
	for bi := uint32(0); bi < nBoxes; bi++ {
		boxWhere := fmt.Sprintf("%v box %v", where, bi)
		typ, err := in.u8(boxWhere + " type")
		if err != nil {
			return nil, err
		}
		if !annotation.BoxType(typ).IsStorable() {
			return nil, &labelformat.ParseError{Locator: boxWhere, Field: "box type", Value: fmt.Sprint(typ)}
		}
		frame, err := in.u32(boxWhere + " frame")
		if err != nil {
			return nil, err
		}
		var edges [4]int32
		for i := range edges {
			if edges[i], err = in.i32(boxWhere + " rect"); err != nil {
				return nil, err
			}
		}
		track.Upsert(annotation.Box{
			Type:  annotation.BoxType(typ),
			Frame: int(frame),
			Rect:  geom.RectFromEdges(int(edges[0]), int(edges[1]), int(edges[2]), int(edges[3])),
		})
	}
	return track, nil
}
