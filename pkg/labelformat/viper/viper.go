// Package viper reads and writes the subset of ViPER XML that holds bounding box tracks.
//
// Every track becomes an OBJECT whose descriptor name is the category name, with a single
// dynamic "BoundingBox" attribute. Frame spans are 1-based and inclusive.
// On export, interpolated frames are written out as individual boxes, and runs of
// identical key boxes are collapsed into one span.
package viper

const (
	Namespace     = "http://lamp.cfar.umd.edu/viper"
	DataNamespace = "http://lamp.cfar.umd.edu/viperdata"

	informationDescriptor = "Information"
	boundingBoxAttribute  = "BoundingBox"
	attrNumFrames         = "NUMFRAMES"
	attrFrameWidth        = "H-FRAME-SIZE"
	attrFrameHeight       = "V-FRAME-SIZE"
)

// DecodeOptions alters how strictly the file is interpreted
type DecodeOptions struct {
	// Only read the first data:bbox of each object, instead of all of them.
	// Files written by Encode have many boxes per object, so this loses data on re-import.
	FirstBBoxOnly bool
}

// Result describes a completed decode
type Result struct {
	Tracks    int  // Number of tracks added
	Skipped   int  // Objects that held no boxes
	Cancelled bool // The sink cancelled before every object was added
}
