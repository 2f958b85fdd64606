package view

import (
	"math"

	"golang.org/x/image/math/f32"
)

// Mat4 is a row-major 4x4 matrix: m[4*r+c] is row r, column c.
type Mat4 = f32.Mat4

// Vec3 is a 3-component vector.
type Vec3 = f32.Vec3

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Multiply returns a*b.
func Multiply(a, b Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[4*r+k] * b[4*k+c]
			}
			out[4*r+c] = sum
		}
	}
	return out
}

// Transpose returns the transpose of m.
func Transpose(m Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[4*c+r] = m[4*r+c]
		}
	}
	return out
}

// RotationX returns a rotation of angle radians about the X axis.
func RotationX(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	return Mat4{
		1, 0, 0, 0,
		0, float32(c), float32(-s), 0,
		0, float32(s), float32(c), 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a rotation of angle radians about the Y axis.
func RotationY(angle float64) Mat4 {
	s, c := math.Sincos(angle)
	return Mat4{
		float32(c), 0, float32(s), 0,
		0, 1, 0, 0,
		float32(-s), 0, float32(c), 0,
		0, 0, 0, 1,
	}
}

// CameraRotation returns the camera's world rotation: yaw about Y applied
// after pitch about X.
func CameraRotation(o Orientation) Mat4 {
	return Multiply(RotationY(o.Yaw), RotationX(o.Pitch))
}

// RotationView returns the view matrix for a camera at the sphere's center.
// Rotations are orthonormal, so the inverse is the transpose.
func RotationView(o Orientation) Mat4 {
	return Transpose(CameraRotation(o))
}

// Forward returns the camera's look direction in world space. The camera
// looks down -Z at yaw 0, pitch 0.
func Forward(o Orientation) Vec3 {
	m := CameraRotation(o)
	return Vec3{-m[2], -m[6], -m[10]}
}

// Perspective returns an OpenGL-style projection for a vertical field of view
// in degrees.
func Perspective(fovDegrees, aspect, near, far float64) Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	f := 1 / math.Tan(fovDegrees*math.Pi/360)
	nf := near - far
	return Mat4{
		float32(f / aspect), 0, 0, 0,
		0, float32(f), 0, 0,
		0, 0, float32((far + near) / nf), float32(2 * far * near / nf),
		0, 0, -1, 0,
	}
}
