// Package transform implements the calibration model used to co-register a
// raw depth image into the color camera's pixel grid and to unproject the
// registered depth samples into 3-D points.
package transform

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Intrinsics holds the pinhole parameters of a single camera: focal lengths
// and principal point in pixels.
type Intrinsics struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Ppx    float64
	Ppy    float64
}

func (i Intrinsics) check() error {
	if i.Width <= 0 || i.Height <= 0 {
		return errors.Errorf("invalid intrinsics size %dx%d", i.Width, i.Height)
	}
	if i.Fx <= 0 || i.Fy <= 0 {
		return errors.Errorf("invalid focal lengths fx=%v fy=%v", i.Fx, i.Fy)
	}
	return nil
}

// UnprojectPixel converts the pixel (x, y) at depth z (millimeters) into a
// 3-D point in the camera frame, in millimeters.
func (i Intrinsics) UnprojectPixel(x, y int, z float64) r3.Vector {
	return r3.Vector{
		X: (float64(x) - i.Ppx) * z / i.Fx,
		Y: (float64(y) - i.Ppy) * z / i.Fy,
		Z: z,
	}
}

// ProjectPoint projects a 3-D point in the camera frame onto the image
// plane, returning unrounded pixel coordinates.
func (i Intrinsics) ProjectPoint(p r3.Vector) (float64, float64) {
	return p.X/p.Z*i.Fx + i.Ppx, p.Y/p.Z*i.Fy + i.Ppy
}

// Extrinsics is a rigid transform from one camera frame to another.
// Translation is in millimeters.
type Extrinsics struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// IdentityExtrinsics returns the no-op rigid transform.
func IdentityExtrinsics() Extrinsics {
	return Extrinsics{
		Rotation: mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		}),
	}
}

// Apply transforms a point from the source camera frame into the
// destination camera frame.
func (e Extrinsics) Apply(p r3.Vector) r3.Vector {
	r := e.Rotation
	return r3.Vector{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z + e.Translation.X,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z + e.Translation.Y,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z + e.Translation.Z,
	}
}

func (e Extrinsics) check() error {
	if e.Rotation == nil {
		return errors.New("extrinsics missing rotation matrix")
	}
	rows, cols := e.Rotation.Dims()
	if rows != 3 || cols != 3 {
		return errors.Errorf("extrinsics rotation must be 3x3, got %dx%d", rows, cols)
	}
	return nil
}

// Calibration is the full camera system of a depth sensor: the color and
// depth camera intrinsics plus the rigid transform relating them. Devices
// report this from factory calibration at open time.
type Calibration struct {
	Color        Intrinsics
	Depth        Intrinsics
	DepthToColor Extrinsics
}

// Model performs the two transform steps of the capture pipeline:
// depth-to-color registration and unprojection to a point cloud.
type Model struct {
	cal Calibration
}

func NewModel(cal Calibration) (*Model, error) {
	if err := cal.Color.check(); err != nil {
		return nil, errors.Wrap(err, "color camera")
	}
	if err := cal.Depth.check(); err != nil {
		return nil, errors.Wrap(err, "depth camera")
	}
	if err := cal.DepthToColor.check(); err != nil {
		return nil, err
	}
	return &Model{cal: cal}, nil
}

// Calibration returns the calibration the model was built from.
func (m *Model) Calibration() Calibration {
	return m.cal
}

// RegisterDepth reprojects a raw depth image (row-major uint16 millimeter
// samples at depth camera resolution) into the color camera's pixel grid.
// Where several depth samples land on the same color pixel the nearest one
// wins. Pixels with no depth sample are zero.
func (m *Model) RegisterDepth(depth []uint16) ([]uint16, error) {
	dc, cc := m.cal.Depth, m.cal.Color
	if len(depth) != dc.Width*dc.Height {
		return nil, errors.Errorf("depth image has %d samples, want %d", len(depth), dc.Width*dc.Height)
	}
	out := make([]uint16, cc.Width*cc.Height)
	for y := 0; y < dc.Height; y++ {
		for x := 0; x < dc.Width; x++ {
			z := depth[y*dc.Width+x]
			if z == 0 {
				continue
			}
			p := m.cal.DepthToColor.Apply(dc.UnprojectPixel(x, y, float64(z)))
			if p.Z <= 0 {
				continue
			}
			u, v := cc.ProjectPoint(p)
			cx, cy := int(math.Round(u)), int(math.Round(v))
			if cx < 0 || cx >= cc.Width || cy < 0 || cy >= cc.Height {
				continue
			}
			zc := uint16(math.Round(p.Z))
			if zc == 0 {
				zc = 1
			}
			cur := out[cy*cc.Width+cx]
			if cur == 0 || zc < cur {
				out[cy*cc.Width+cx] = zc
			}
		}
	}
	return out, nil
}

// Unproject converts a registered depth image into a packed point cloud
// buffer: one float32 X, Y, Z triple per color pixel, row-major, little
// endian, in millimeters relative to the color camera. Pixels with no depth
// unproject to the origin.
func (m *Model) Unproject(registered []uint16) ([]byte, error) {
	cc := m.cal.Color
	if len(registered) != cc.Width*cc.Height {
		return nil, errors.Errorf("registered depth has %d samples, want %d", len(registered), cc.Width*cc.Height)
	}
	out := make([]byte, CloudBytes(cc.Width, cc.Height))
	o := 0
	for y := 0; y < cc.Height; y++ {
		for x := 0; x < cc.Width; x++ {
			var p r3.Vector
			if z := registered[y*cc.Width+x]; z != 0 {
				p = cc.UnprojectPixel(x, y, float64(z))
			}
			putFloat32(out[o:], float32(p.X))
			putFloat32(out[o+4:], float32(p.Y))
			putFloat32(out[o+8:], float32(p.Z))
			o += 12
		}
	}
	return out, nil
}

// CloudBytes returns the size in bytes of a packed point cloud for a color
// frame of the given dimensions: width*3 float32 samples per row.
func CloudBytes(width, height int) int {
	return width * height * 3 * 4
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
