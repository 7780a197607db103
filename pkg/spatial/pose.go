// Package spatial holds the pose and color primitives shared by the session
// store, the ledger and the wire codec.
package spatial

import (
	"fmt"

	"cogentcore.org/core/math32"
)

// DefaultEpsilon is the tolerance used when deciding whether a pose changed.
const DefaultEpsilon float32 = 1e-4

// Pose is a position plus an orientation quaternion.
type Pose struct {
	Position   math32.Vector3
	Quaternion math32.Quat
}

// Identity is the pose at the origin with no rotation.
func Identity() Pose {
	return Pose{Quaternion: math32.Quat{W: 1}}
}

// PoseFromArrays builds a pose from the wire representation.
func PoseFromArrays(position [3]float32, quaternion [4]float32) Pose {
	return Pose{
		Position:   math32.Vec3(position[0], position[1], position[2]),
		Quaternion: math32.Quat{X: quaternion[0], Y: quaternion[1], Z: quaternion[2], W: quaternion[3]},
	}
}

func (p Pose) PositionArray() [3]float32 {
	return [3]float32{p.Position.X, p.Position.Y, p.Position.Z}
}

func (p Pose) QuaternionArray() [4]float32 {
	return [4]float32{p.Quaternion.X, p.Quaternion.Y, p.Quaternion.Z, p.Quaternion.W}
}

// ApproxEqual compares component-wise within eps.
func (p Pose) ApproxEqual(o Pose, eps float32) bool {
	a, b := p.PositionArray(), o.PositionArray()
	for i := range a {
		if math32.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	qa, qb := p.QuaternionArray(), o.QuaternionArray()
	for i := range qa {
		if math32.Abs(qa[i]-qb[i]) > eps {
			return false
		}
	}
	return true
}

// RelativeTo expresses p in the local frame of parent. The parent quaternion
// is assumed to be normalized.
func (p Pose) RelativeTo(parent Pose) Pose {
	inv := conjugate(parent.Quaternion)
	rel := Pose{
		Position:   p.Position.Sub(parent.Position).MulQuat(inv),
		Quaternion: inv,
	}
	rel.Quaternion.SetMul(p.Quaternion)
	return rel
}

// Compose places the local pose into the frame of p.
func (p Pose) Compose(local Pose) Pose {
	out := Pose{
		Position:   local.Position.MulQuat(p.Quaternion).Add(p.Position),
		Quaternion: p.Quaternion,
	}
	out.Quaternion.SetMul(local.Quaternion)
	return out
}

// Translate returns the pose moved by delta.
func (p Pose) Translate(delta math32.Vector3) Pose {
	p.Position = p.Position.Add(delta)
	return p
}

func (p Pose) String() string {
	return fmt.Sprintf("pos=%v quat=%v", p.PositionArray(), p.QuaternionArray())
}

func conjugate(q math32.Quat) math32.Quat {
	return math32.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}
