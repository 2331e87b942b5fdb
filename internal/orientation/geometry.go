package orientation

import "math"

// DefaultAxisLength is the drawn length of each body axis.
const DefaultAxisLength = 0.8

// CubeHalfSize places the reference cube vertices at ±0.3 on each axis.
const CubeHalfSize = 0.3

// Vec3 is a 3D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

// Apply returns m·v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Basis is the body frame drawn from the origin: X red, Y green, Z blue.
type Basis struct {
	X Vec3 `json:"x"`
	Y Vec3 `json:"y"`
	Z Vec3 `json:"z"`
}

// Edge is one line segment of the reference cube.
type Edge struct {
	A Vec3 `json:"a"`
	B Vec3 `json:"b"`
}

func deg2rad(d float64) float64 { return d * math.Pi / 180.0 }

// RotationMatrix returns R = Rz(yaw) · Ry(pitch) · Rx(roll).
// Yaw turns about the vertical Z axis, pitch about the lateral Y axis and
// roll about the longitudinal X axis.
func RotationMatrix(p Pose) Mat3 {
	y, pt, r := deg2rad(p.Yaw), deg2rad(p.Pitch), deg2rad(p.Roll)

	cy, sy := math.Cos(y), math.Sin(y)
	cp, sp := math.Cos(pt), math.Sin(pt)
	cr, sr := math.Cos(r), math.Sin(r)

	rz := Mat3{
		{cy, -sy, 0},
		{sy, cy, 0},
		{0, 0, 1},
	}
	ry := Mat3{
		{cp, 0, sp},
		{0, 1, 0},
		{-sp, 0, cp},
	}
	rx := Mat3{
		{1, 0, 0},
		{0, cr, -sr},
		{0, sr, cr},
	}
	return rz.Mul(ry).Mul(rx)
}

// RotateBasis rotates the three axis-aligned vectors of the given length by
// the pose. length <= 0 uses DefaultAxisLength.
func RotateBasis(p Pose, length float64) Basis {
	if length <= 0 {
		length = DefaultAxisLength
	}
	r := RotationMatrix(p)
	return Basis{
		X: r.Apply(Vec3{X: length}),
		Y: r.Apply(Vec3{Y: length}),
		Z: r.Apply(Vec3{Z: length}),
	}
}

var cubeEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0}, // bottom
	{4, 5}, {5, 6}, {6, 7}, {7, 4}, // top
	{0, 4}, {1, 5}, {2, 6}, {3, 7}, // sides
}

var referenceCube = buildCube(CubeHalfSize)

func buildCube(h float64) []Edge {
	v := [8]Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	edges := make([]Edge, 0, len(cubeEdges))
	for _, e := range cubeEdges {
		edges = append(edges, Edge{A: v[e[0]], B: v[e[1]]})
	}
	return edges
}

// ReferenceCube returns the 12 edges of the static cube drawn behind the
// axes. The slice is a fresh copy.
func ReferenceCube() []Edge {
	out := make([]Edge, len(referenceCube))
	copy(out, referenceCube)
	return out
}
