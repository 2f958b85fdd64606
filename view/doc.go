// Package view turns continuous 2-D gesture input into a stable 3-D view of
// the panorama sphere.
//
// Two controllers are provided:
//
//   - OrientationController accumulates drag deltas into yaw and pitch. Yaw is
//     unbounded and wraps implicitly through the trigonometric functions of the
//     view transform; pitch is hard-clamped to a symmetric range so the camera
//     never flips over a pole.
//   - ZoomController maps pinch scale to a field of view in degrees. The FOV at
//     pinch-begin is captured as a baseline so that successive pinches compose.
//
// Both controllers are safe for concurrent use: the gesture source writes and
// the render tick reads without further coordination.
//
// Example:
//
//	oc := view.NewOrientationController(view.DefaultOrientationConfig())
//	oc.Begin()
//	oc.Update(12, -4)
//	oc.End()
//	m := oc.ViewTransform() // f32.Mat4, row major
package view
