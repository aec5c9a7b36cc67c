// Package codec dispatches reads and writes to the format packages
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/bb"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/btd"
	"github.com/cyclopcam/groundtruth/pkg/labelformat/viper"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

// Number of bytes that we look at when sniffing a file's format
const sniffSize = 64

// ImportResult describes a completed Decode
type ImportResult struct {
	Format    labelformat.Format `json:"format"`
	Tracks    int                `json:"tracks"`    // Tracks added
	Skipped   int                `json:"skipped"`   // Objects in the file that had no boxes
	Cancelled bool               `json:"cancelled"` // Only part of the file was imported
	Modified  bool               `json:"modified"`  // doc was changed. This can be true even when Decode fails.
}

// Encode writes doc in the given format
func Encode(w io.Writer, format labelformat.Format, doc *annotation.Document, sink progress.Sink) error {
	switch format {
	case labelformat.FormatBTD:
		return btd.Encode(w, doc, sink)
	case labelformat.FormatBB:
		return bb.Encode(w, doc, sink)
	case labelformat.FormatViper:
		return viper.Encode(w, doc, sink)
	}
	return fmt.Errorf("%w '%v'", labelformat.ErrUnknownFormat, format)
}

// Decode replaces the contents of doc with the contents of r.
// When no video with a known frame size is linked, the frame count is taken from the annotations.
// BTD and ViPER files are parsed completely before doc is touched, so for those formats an error
// leaves doc unchanged. A BB file is read straight into doc, so an error part way through leaves
// doc holding whatever was read before the error. ImportResult.Modified reports which case occurred.
func Decode(r io.Reader, format labelformat.Format, doc *annotation.Document, sink progress.Sink) (ImportResult, error) {
	res := ImportResult{Format: format}
	switch format {
	case labelformat.FormatBTD:
		loaded, err := btd.Decode(r, sink)
		if err != nil {
			return res, err
		}
		doc.Categories = loaded.Categories
		doc.IDs = loaded.IDs
		doc.Video.Filename = loaded.Video.Filename
		res.Tracks = doc.TrackCount()
	case labelformat.FormatBB:
		br, err := bb.Decode(r, doc, sink)
		res.Modified = true
		res.Tracks = br.Tracks
		if err != nil {
			doc.UpdateFrameCount()
			return res, err
		}
		res.Cancelled = br.Cancelled
	case labelformat.FormatViper:
		vr, err := viper.Decode(r, doc, sink, viper.DecodeOptions{})
		if err != nil {
			return res, err
		}
		res.Tracks = vr.Tracks
		res.Skipped = vr.Skipped
		res.Cancelled = vr.Cancelled
	default:
		return res, fmt.Errorf("%w '%v'", labelformat.ErrUnknownFormat, format)
	}
	res.Modified = true
	doc.UpdateFrameCount()
	return res, nil
}

// DecodeDetect figures out the format from the filename, or failing that, from the content
func DecodeDetect(r io.Reader, filename string, doc *annotation.Document, sink progress.Sink) (ImportResult, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(sniffSize)
	format, err := labelformat.Detect(filename, head)
	if err != nil {
		return ImportResult{}, err
	}
	return Decode(br, format, doc, sink)
}

// ReadFile loads a file of any supported format into doc
func ReadFile(filename string, doc *annotation.Document, sink progress.Sink) (ImportResult, error) {
	f, err := os.Open(filename)
	if err != nil {
		return ImportResult{}, err
	}
	defer f.Close()
	res, err := DecodeDetect(f, filename, doc, sink)
	if err != nil {
		return res, fmt.Errorf("Error reading %v: %w", filename, err)
	}
	return res, nil
}

// WriteFile saves doc in the format implied by the filename's extension.
// The file is replaced atomically, so a failed or cancelled write leaves any existing file intact.
func WriteFile(filename string, doc *annotation.Document, sink progress.Sink) error {
	format, err := labelformat.FromFilename(filename)
	if err != nil {
		return err
	}
	buf := bytes.Buffer{}
	if err := Encode(&buf, format, doc, sink); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0660); err != nil {
		return err
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
