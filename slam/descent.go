package slam

import (
	"github.com/golang/geo/r3"
)

// TaskSpaceStep moves the arm one Jacobian-transpose step toward target:
// q += gain * J^T (ee - target). It returns the applied joint delta and leaves
// the kinematics recomputed.
func TaskSpaceStep(arm *Arm, target Point, gain float64) Mat {
	arm.UpdateKinematics()
	force := arm.EEPos().Sub(target)
	delta := arm.ComputeJacobianTransposeMove(force).Scale(gain)
	arm.SetQ(arm.Q().Add(delta))
	arm.UpdateKinematics()
	return delta
}

// ConfigGradientDescent refines the arm's configuration so its sensed cloud
// settles onto the surfaces of src. Each of the iters passes samples the map
// gradient at every hit, averages J^T g over the hits and applies
// q -= rate * avg. An empty cloud leaves q untouched. It returns the number of
// updates applied; on return the sensor's gradients match the final pose.
func ConfigGradientDescent(arm *Arm, src GradientSource, iters int, rate float64, noisy bool) int {
	sensor := arm.Sensor()
	arm.UpdateKinematics()
	sensor.ComputeGradients(src, noisy)

	applied := 0
	for it := 0; it < iters; it++ {
		hits := sensor.WorldPoints(noisy)
		if len(hits) == 0 {
			break
		}

		step := NewMat(arm.DOF(), 1)
		for i, p := range hits {
			jac := arm.ComputeLinearJacobian(p)
			step = step.Add(jac.T().Mul(MatFromPoint(sensor.Gradients[i])))
		}
		step = step.Scale(rate / float64(len(hits)))

		arm.SetQ(arm.Q().Sub(step))
		arm.UpdateKinematics()
		sensor.ComputeGradients(src, noisy)
		applied++
	}
	return applied
}

// FreeGradientDescent refines an unconstrained sensor pose against src. The
// translation follows the averaged gradient and the rotation follows the
// averaged torque of the hit offsets, each with its own step rate.
func FreeGradientDescent(sensor *RangeSensor, src GradientSource, iters int, translationStep, rotationStep float64, noisy bool) int {
	sensor.ComputeGradients(src, noisy)

	applied := 0
	for it := 0; it < iters; it++ {
		hits := sensor.WorldPoints(noisy)
		if len(hits) == 0 {
			break
		}

		pose := sensor.Pose()
		origin := r3.Vector{X: pose.Translation.X, Y: pose.Translation.Y}
		var force Point
		var torque float64
		for i, p := range hits {
			g := sensor.Gradients[i]
			force = force.Add(g)
			arm := r3.Vector{X: p.X, Y: p.Y}.Sub(origin)
			torque += arm.Cross(r3.Vector{X: g.X, Y: g.Y}).Z
		}
		scale := 1 / float64(len(hits))

		local := sensor.LocalPose()
		local.Translation = local.Translation.Add(force.Scale(translationStep * scale))
		local.Rotation -= torque * rotationStep * scale
		sensor.SetPose(local)
		sensor.ComputeGradients(src, noisy)
		applied++
	}
	return applied
}
