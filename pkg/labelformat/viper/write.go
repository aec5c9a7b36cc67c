package viper

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
)

type xmlViper struct {
	XMLName   xml.Name  `xml:"viper"`
	Xmlns     string    `xml:"xmlns,attr"`
	XmlnsData string    `xml:"xmlns:data,attr"`
	Config    xmlConfig `xml:"config"`
	Data      xmlData   `xml:"data"`
}

type xmlConfig struct {
	Descriptors []xmlDescriptor `xml:"descriptor"`
}

type xmlDescriptor struct {
	Name       string              `xml:"name,attr"`
	Type       string              `xml:"type,attr"`
	Attributes []xmlDescriptorAttr `xml:"attribute"`
}

type xmlDescriptorAttr struct {
	Dynamic string `xml:"dynamic,attr"`
	Name    string `xml:"name,attr"`
	Type    string `xml:"type,attr"`
}

type xmlData struct {
	Sourcefile xmlSourcefile `xml:"sourcefile"`
}

type xmlSourcefile struct {
	Filename string      `xml:"filename,attr"`
	File     xmlFile     `xml:"file"`
	Objects  []xmlObject `xml:"object"`
}

type xmlFile struct {
	ID         int           `xml:"id,attr"`
	Name       string        `xml:"name,attr"`
	Attributes []xmlFileAttr `xml:"attribute"`
}

type xmlFileAttr struct {
	Name  string    `xml:"name,attr"`
	Value xmlDValue `xml:"data:dvalue"`
}

type xmlDValue struct {
	Value int `xml:"value,attr"`
}

type xmlObject struct {
	Framespan string        `xml:"framespan,attr"`
	ID        int           `xml:"id,attr"`
	Name      string        `xml:"name,attr"`
	Attribute xmlObjectAttr `xml:"attribute"`
}

type xmlObjectAttr struct {
	Name   string    `xml:"name,attr"`
	BBoxes []xmlBBox `xml:"data:bbox"`
}

type xmlBBox struct {
	Framespan string `xml:"framespan,attr"`
	X         int    `xml:"x,attr"`
	Y         int    `xml:"y,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
}

func makeBBox(first, last int, r geom.Rect) xmlBBox {
	return xmlBBox{
		Framespan: fmt.Sprintf("%d:%d", first+1, last+1),
		X:         r.X,
		Y:         r.Y,
		Width:     r.Width,
		Height:    r.Height,
	}
}

// objectFramespan lists the frames of a track, 1-based, with a hole before every
// single box that does not directly follow its predecessor.
func objectFramespan(keys []annotation.Box) string {
	if len(keys) == 0 {
		return "0:0"
	}
	span := strings.Builder{}
	span.WriteString(strconv.Itoa(keys[0].Frame+1) + ":")
	for i := 1; i < len(keys); i++ {
		if keys[i].Type == annotation.BoxSingle && keys[i].Frame != keys[i-1].Frame+1 {
			fmt.Fprintf(&span, "%d, %d:", keys[i-1].Frame+1, keys[i].Frame+1)
		}
	}
	span.WriteString(strconv.Itoa(keys[len(keys)-1].Frame + 1))
	return span.String()
}

// trackBBoxes produces the data:bbox list of a track.
// Interpolated frames are written as single-frame boxes, and a box followed by a key box
// with the same rectangle is written as one span covering both.
func trackBBoxes(keys []annotation.Box) []xmlBBox {
	var out []xmlBBox
	for i := 0; i < len(keys); i++ {
		cur := keys[i]
		if i > 0 && cur.Type == annotation.BoxKey {
			for _, v := range annotation.InterpolateRange(keys[i-1], cur) {
				out = append(out, makeBBox(v.Frame, v.Frame, v.Rect))
			}
		}
		if i+1 < len(keys) && keys[i+1].Type == annotation.BoxKey && keys[i+1].Rect == cur.Rect {
			out = append(out, makeBBox(cur.Frame, keys[i+1].Frame, cur.Rect))
			i++
		} else {
			out = append(out, makeBBox(cur.Frame, cur.Frame, cur.Rect))
		}
	}
	return out
}

func buildDocument(doc *annotation.Document, sink progress.Sink) (*xmlViper, error) {
	v := &xmlViper{
		Xmlns:     Namespace,
		XmlnsData: DataNamespace,
	}

	info := xmlDescriptor{Name: informationDescriptor, Type: "FILE"}
	for _, name := range []string{attrNumFrames, attrFrameWidth, attrFrameHeight} {
		info.Attributes = append(info.Attributes, xmlDescriptorAttr{Dynamic: "false", Name: name, Type: "dvalue"})
	}
	v.Config.Descriptors = append(v.Config.Descriptors, info)
	for _, cat := range doc.Categories {
		v.Config.Descriptors = append(v.Config.Descriptors, xmlDescriptor{
			Name:       cat.Name,
			Type:       "OBJECT",
			Attributes: []xmlDescriptorAttr{{Dynamic: "true", Name: boundingBoxAttribute, Type: "bbox"}},
		})
	}

	src := &v.Data.Sourcefile
	src.Filename = doc.Video.Filename
	src.File = xmlFile{
		ID:   0,
		Name: informationDescriptor,
		Attributes: []xmlFileAttr{
			{Name: attrNumFrames, Value: xmlDValue{doc.Video.FrameCount}},
			{Name: attrFrameWidth, Value: xmlDValue{doc.Video.Width}},
			{Name: attrFrameHeight, Value: xmlDValue{doc.Video.Height}},
		},
	}

	done := 0
	for _, cat := range doc.Categories {
		for _, track := range cat.Tracks() {
			if sink.Cancelled() {
				return nil, labelformat.ErrUserCancelled
			}
			keys := track.Keyframes()
			src.Objects = append(src.Objects, xmlObject{
				Framespan: objectFramespan(keys),
				ID:        track.ID(),
				Name:      cat.Name,
				Attribute: xmlObjectAttr{
					Name:   boundingBoxAttribute,
					BBoxes: trackBBoxes(keys),
				},
			})
			done++
			sink.SetValue(done)
		}
	}
	return v, nil
}

// Encode writes the document as ViPER XML.
// Nothing is written if the sink cancels.
func Encode(w io.Writer, doc *annotation.Document, sink progress.Sink) error {
	sink = progress.OrNop(sink)
	sink.SetMax(doc.TrackCount())

	v, err := buildDocument(doc, sink)
	if err != nil {
		return err
	}
	output, err := xml.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("Failed to marshal ViPER XML: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(output); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
