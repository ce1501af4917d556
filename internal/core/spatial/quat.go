package spatial

import "math"

// Quat is a rotation quaternion with W as the scalar part.
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// AxisAngle builds a rotation of angle radians about axis.
func AxisAngle(axis Vec3, angle float64) Quat {
	n := axis.Normalize()
	s, c := math.Sincos(angle / 2)
	return Quat{X: n.X * s, Y: n.Y * s, Z: n.Z * s, W: c}
}

func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

func (q Quat) Conjugate() Quat { return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W} }

func (q Quat) Dot(o Quat) float64 { return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W }

// Normalize returns q scaled to unit length. A zero quaternion becomes Identity.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.Dot(q))
	if l == 0 {
		return Identity
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

// AngleTo returns the angle in radians of the relative rotation from q to o.
// q and -q describe the same rotation and yield 0.
func (q Quat) AngleTo(o Quat) float64 {
	d := math.Abs(q.Normalize().Dot(o.Normalize()))
	if d >= 1 {
		return 0
	}
	return 2 * math.Acos(d)
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := Quat{X: v.X, Y: v.Y, Z: v.Z}
	r := q.Mul(p).Mul(q.Conjugate())
	return Vec3{r.X, r.Y, r.Z}
}

// Integrate advances q by angular velocity w (radians per second) over dt.
func (q Quat) Integrate(w Vec3, dt float64) Quat {
	angle := w.Length() * dt
	if angle == 0 {
		return q
	}
	return AxisAngle(w, angle).Mul(q).Normalize()
}

// YawZ returns the rotation angle about the Z axis, used by planar backends.
func (q Quat) YawZ() float64 {
	n := q.Normalize()
	return math.Atan2(2*(n.W*n.Z+n.X*n.Y), 1-2*(n.Y*n.Y+n.Z*n.Z))
}
