package capture

import (
	"time"
)

// Frame is one captured frame pair: a BGRA color image and the point cloud
// unprojected from the depth image of the same capture. The two always
// travel and are released together, so a consumer can never observe a color
// image paired with another capture's cloud.
//
// Ownership moves with the frame: session to loop to slot to consumer.
// Whoever holds the frame calls Release exactly once when done; the byte
// views returned by Color and Cloud are invalid after that.
type Frame struct {
	Width  int
	Height int
	// Seq increments once per successful capture on the owning session.
	Seq  uint64
	Time time.Time

	color    *Buffer
	cloud    []byte
	released bool
}

// NewFrame assembles a frame from a driver-owned color buffer and a derived
// point cloud. The frame takes ownership of the color buffer.
func NewFrame(color *Buffer, cloud []byte, width, height int, seq uint64, at time.Time) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Seq:    seq,
		Time:   at,
		color:  color,
		cloud:  cloud,
	}
}

// Color returns the width*height*4 BGRA pixel bytes. Valid until Release.
func (f *Frame) Color() []byte {
	if f.released {
		panic("capture: frame read after release")
	}
	return f.color.Data()
}

// Cloud returns the packed point cloud: width*3 float32 samples per row,
// height rows, little endian, millimeters. Valid until Release.
func (f *Frame) Cloud() []byte {
	if f.released {
		panic("capture: frame read after release")
	}
	return f.cloud
}

// Release frees the native color buffer and drops the cloud. Must be called
// exactly once, by whichever owner currently holds the frame.
func (f *Frame) Release() {
	if f.released {
		panic("capture: frame already released")
	}
	f.released = true
	f.cloud = nil
	f.color.Free()
}
