package bb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func (l *lineReader) next(what string) (string, error) {
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w at line %v, while reading %v", labelformat.ErrUnexpectedEOF, l.line+1, what)
	}
	l.line++
	return strings.TrimSpace(l.scanner.Text()), nil
}

func (l *lineReader) integer(locator, what string) (int, error) {
	s, err := l.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, &labelformat.ParseError{Line: l.line, Locator: locator, Field: what, Value: s, Err: err}
	}
	return v, nil
}

func (l *lineReader) rect(locator string) (geom.Rect, error) {
	s, err := l.next("box")
	if err != nil {
		return geom.Rect{}, err
	}
	parts := strings.Split(s, ";")
	if len(parts) < 4 {
		return geom.Rect{}, &labelformat.ParseError{Line: l.line, Locator: locator, Field: "box", Value: s}
	}
	var v [4]int
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return geom.Rect{}, &labelformat.ParseError{Line: l.line, Locator: locator, Field: "box", Value: s, Err: err}
		}
		// Truncate towards zero
		v[i] = int(f)
	}
	return geom.MakeRect(v[0], v[1], v[2], v[3]), nil
}

// Decode replaces the contents of doc with the file's objects.
//
// The document is cleared first (including its id counter), and then filled as the file is read,
// so an error leaves whatever was read up to that point in the document. On cancellation the
// tracks read so far are kept, and Result.Cancelled is set.
// All boxes are single boxes, in a single category named ImportCategory.
// doc.Video.FrameCount is set from the file.
func Decode(r io.Reader, doc *annotation.Document, sink progress.Sink) (Result, error) {
	sink = progress.OrNop(sink)
	result := Result{}
	in := &lineReader{scanner: bufio.NewScanner(r)}

	doc.Clear()
	cat := doc.EnsureCategory(ImportCategory)

	frameCount, err := in.integer("header", "frame count")
	if err != nil {
		return result, err
	}
	if frameCount < 0 {
		return result, &labelformat.ParseError{Line: in.line, Locator: "header", Field: "frame count", Value: strconv.Itoa(frameCount)}
	}
	doc.Video.FrameCount = frameCount
	sink.SetMax(frameCount)

	for i := 0; i < frameCount; i++ {
		sink.SetValue(i)
		if sink.Cancelled() {
			result.Cancelled = true
			return result, nil
		}
		locator := fmt.Sprintf("frame %v", i)
		frame, err := in.integer(locator, "frame number")
		if err != nil {
			return result, err
		}
		if frame != i {
			return result, &labelformat.ParseError{Line: in.line, Locator: locator, Field: "frame number", Value: strconv.Itoa(frame)}
		}
		nObjects, err := in.integer(locator, "object count")
		if err != nil {
			return result, err
		}
		for obj := 0; obj < nObjects; obj++ {
			objLocator := fmt.Sprintf("frame %v object %v", i, obj)
			nBoxes, err := in.integer(objLocator, "box count")
			if err != nil {
				return result, err
			}
			track, _ := doc.NewTrack(cat)
			result.Tracks++
			for k := 0; k < nBoxes; k++ {
				rect, err := in.rect(objLocator)
				if err != nil {
					return result, err
				}
				track.Upsert(annotation.Box{
					Type:  annotation.BoxSingle,
					Frame: i + k,
					Rect:  rect,
				})
			}
		}
	}
	sink.SetValue(frameCount)
	return result, nil
}
