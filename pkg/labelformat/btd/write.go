package btd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

type writer struct {
	buf     bytes.Buffer
	err     error
	scratch [4]byte
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u32(v uint32) {
	w.buf.Write(binary.BigEndian.AppendUint32(w.scratch[:0], v))
}

func (w *writer) i32(v int32) {
	w.u32(uint32(v))
}

func (w *writer) str(s string) {
	if w.err != nil {
		return
	}
	if s == "" {
		w.u32(nullStringLength)
		return
	}
	enc, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		w.err = fmt.Errorf("Failed to encode string '%v' as UTF-16: %w", s, err)
		return
	}
	w.u32(uint32(len(enc)))
	w.buf.Write(enc)
}

// Encode writes the document to w.
// The id counter is written as is, without consuming an id.
// Nothing is written if the sink cancels.
func Encode(w io.Writer, doc *annotation.Document, sink progress.Sink) error {
	sink = progress.OrNop(sink)
	sink.SetMax(doc.TrackCount())

	out := &writer{}
	out.buf.WriteString(Magic)
	out.u8(Version)
	out.str(doc.Video.Filename)
	out.u32(uint32(doc.IDs.Peek()))
	out.u32(uint32(len(doc.Categories)))

	done := 0
	for _, cat := range doc.Categories {
		out.str(cat.Name)
		out.u32(uint32(cat.Len()))
		for _, track := range cat.Tracks() {
			if sink.Cancelled() {
				return labelformat.ErrUserCancelled
			}
			out.u32(uint32(track.ID()))
			out.u32(uint32(track.Len()))
			for _, b := range track.Keyframes() {
				out.u8(uint8(b.Type))
				out.u32(uint32(b.Frame))
				out.i32(int32(b.Rect.X))
				out.i32(int32(b.Rect.Y))
				out.i32(int32(b.Rect.Right()))
				out.i32(int32(b.Rect.Bottom()))
			}
			done++
			sink.SetValue(done)
		}
	}
	if out.err != nil {
		return out.err
	}

	_, err := w.Write(out.buf.Bytes())
	return err
}
