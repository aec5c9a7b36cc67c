package viper

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

// An object that has been parsed, but not yet added to the document
type stagedObject struct {
	category string
	boxes    []annotation.Box
}

type stagedFile struct {
	filename   string
	frameCount int // -1 if not present
	width      int
	height     int
	objects    []stagedObject
	skipped    int
}

func firstChildElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

func childElements(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

// isBBox matches <data:bbox>, or <bbox> in the viperdata namespace under any prefix
func isBBox(n *xmlquery.Node) bool {
	return n.Type == xmlquery.ElementNode && n.Data == "bbox" && (n.Prefix == "data" || n.NamespaceURI == DataNamespace)
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func parseInt(locator, field, s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &labelformat.ParseError{Locator: locator, Field: field, Value: s, Err: err}
	}
	return v, nil
}

// parseSpan parses a 1-based "first:last" span, and returns it 0-based
func parseSpan(locator, s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, &labelformat.ParseError{Locator: locator, Field: "framespan", Value: s}
	}
	first, err := parseInt(locator, "framespan", a)
	if err != nil {
		return 0, 0, err
	}
	last, err := parseInt(locator, "framespan", b)
	if err != nil {
		return 0, 0, err
	}
	if first < 1 || last < first {
		return 0, 0, &labelformat.ParseError{Locator: locator, Field: "framespan", Value: s}
	}
	return first - 1, last - 1, nil
}

func parseBBox(locator string, n *xmlquery.Node) ([]annotation.Box, error) {
	first, last, err := parseSpan(locator, n.SelectAttr("framespan"))
	if err != nil {
		return nil, err
	}
	var v [4]int
	for i, name := range []string{"x", "y", "width", "height"} {
		if v[i], err = parseInt(locator, name, n.SelectAttr(name)); err != nil {
			return nil, err
		}
	}
	rect := geom.MakeRect(v[0], v[1], v[2], v[3])
	boxes := []annotation.Box{{Type: annotation.BoxSingle, Frame: first, Rect: rect}}
	if last > first {
		boxes = append(boxes, annotation.Box{Type: annotation.BoxKey, Frame: last, Rect: rect})
	}
	return boxes, nil
}

// Reads the optional "Information" file element
func parseInformation(sourcefile *xmlquery.Node, staged *stagedFile) error {
	for _, file := range childElements(sourcefile, "file") {
		if file.SelectAttr("name") != informationDescriptor {
			continue
		}
		for _, attr := range childElements(file, "attribute") {
			name := attr.SelectAttr("name")
			var target *int
			switch name {
			case attrNumFrames:
				target = &staged.frameCount
			case attrFrameWidth:
				target = &staged.width
			case attrFrameHeight:
				target = &staged.height
			default:
				continue
			}
			dv := firstChildElement(attr, "dvalue")
			if dv == nil {
				continue
			}
			v, err := parseInt("file Information", name, dv.SelectAttr("value"))
			if err != nil {
				return err
			}
			*target = v
		}
		return nil
	}
	return nil
}

func parseFile(r io.Reader, opt DecodeOptions) (*stagedFile, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &labelformat.ParseError{Locator: "document", Field: "XML", Err: err}
	}

	viperNode := rootElement(root)
	if viperNode == nil {
		return nil, &labelformat.SchemaError{Element: "viper"}
	}
	if viperNode.Data != "viper" {
		return nil, &labelformat.SchemaError{Element: "viper", Found: qualifiedName(viperNode)}
	}
	dataNode := firstChildElement(viperNode, "data")
	if dataNode == nil {
		return nil, &labelformat.SchemaError{Element: "data"}
	}
	sourcefile := firstChildElement(dataNode, "sourcefile")
	if sourcefile == nil {
		return nil, &labelformat.SchemaError{Element: "sourcefile"}
	}

	staged := &stagedFile{
		filename:   sourcefile.SelectAttr("filename"),
		frameCount: -1,
	}
	if err := parseInformation(sourcefile, staged); err != nil {
		return nil, err
	}

	for i, obj := range childElements(sourcefile, "object") {
		so := stagedObject{category: obj.SelectAttr("name")}
		// Only the first attribute of an object is considered
		if attr := firstChildElement(obj, "attribute"); attr != nil {
			for c := attr.FirstChild; c != nil; c = c.NextSibling {
				if !isBBox(c) {
					continue
				}
				boxes, err := parseBBox(fmt.Sprintf("object %v (id %v)", i, obj.SelectAttr("id")), c)
				if err != nil {
					return nil, err
				}
				so.boxes = append(so.boxes, boxes...)
				if opt.FirstBBoxOnly {
					break
				}
			}
		}
		if len(so.boxes) == 0 {
			staged.skipped++
			continue
		}
		staged.objects = append(staged.objects, so)
	}
	return staged, nil
}

// Decode replaces the contents of doc with the objects in a ViPER file.
//
// The whole file is parsed before doc is touched, so a malformed or structurally invalid file
// leaves doc unchanged. Once parsing succeeds, doc is cleared (including its id counter) and
// every object becomes a track with a fresh id, in a category named after the object's descriptor.
// If the sink cancels part way through, the tracks added so far are kept, and Result.Cancelled is set.
func Decode(r io.Reader, doc *annotation.Document, sink progress.Sink, opt DecodeOptions) (Result, error) {
	sink = progress.OrNop(sink)
	result := Result{}

	staged, err := parseFile(r, opt)
	if err != nil {
		return result, err
	}
	result.Skipped = staged.skipped
	sink.SetMax(len(staged.objects))

	doc.Clear()
	doc.Video.Filename = staged.filename
	if staged.frameCount >= 0 {
		doc.Video.FrameCount = staged.frameCount
	}
	if staged.width > 0 && staged.height > 0 {
		doc.Video.Width = staged.width
		doc.Video.Height = staged.height
	}

	for i, so := range staged.objects {
		if sink.Cancelled() {
			result.Cancelled = true
			return result, nil
		}
		track, _ := doc.NewTrack(doc.EnsureCategory(so.category))
		for _, b := range so.boxes {
			track.Upsert(b)
		}
		result.Tracks++
		sink.SetValue(i + 1)
	}
	return result, nil
}
