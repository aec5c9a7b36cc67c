// Package bb reads and writes the frame-indexed "BB" text format.
//
// The format has no categories, and no notion of interpolation. An object is a run of
// boxes on consecutive frames, and is listed under the frame where the run starts:
//
//	<frame count>
//	for each frame i in [0, frame count):
//	  <i>
//	  <number of objects starting on frame i>
//	  for each object:
//	    <number of boxes>
//	    <left>;<top>;<width>;<height>     one line per box, on frames i, i+1, ...
package bb

// Category that imported objects are placed in
const ImportCategory = "Objects"

// Result describes a completed decode
type Result struct {
	Tracks    int  // Number of tracks added
	Cancelled bool // The sink cancelled before the whole file was read
}
