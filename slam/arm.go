package slam

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// jointAxis is the rotation axis shared by every revolute joint.
var jointAxis = r3.Vector{X: 0, Y: 0, Z: 1}

// Arm is a planar serial manipulator: N joints interleaved with N+1 links and
// a range sensor on the last link. The configuration vector q is the single
// source of truth for the joint angles.
type Arm struct {
	chain  *Chain
	joints []int
	links  []int
	sensor *RangeSensor
	q      Mat
}

// NewArm builds root -> (joint_i -> link_i) for every length, then a terminal
// sensor-mount link of length mount and the sensor itself.
func NewArm(lengths []float64, mount float64, scan SensorConfig) (*Arm, error) {
	if len(lengths) == 0 {
		return nil, errors.New("arm needs at least one link length")
	}
	for i, l := range lengths {
		if l < 0 {
			return nil, errors.Errorf("link %d has negative length %g", i, l)
		}
	}

	chain := NewChain()
	a := &Arm{
		chain:  chain,
		joints: make([]int, 0, len(lengths)),
		links:  make([]int, 0, len(lengths)+1),
		q:      NewMat(len(lengths), 1),
	}

	last := chain.Root()
	for _, l := range lengths {
		j := chain.AddJoint(last)
		a.joints = append(a.joints, j)
		last = chain.AddLink(j, l)
		a.links = append(a.links, last)
	}
	last = chain.AddLink(last, mount)
	a.links = append(a.links, last)

	sensor, err := newRangeSensor(chain, chain.AddSensor(last), scan)
	if err != nil {
		return nil, err
	}
	a.sensor = sensor
	chain.Recompute()
	return a, nil
}

// DOF returns the number of joints.
func (a *Arm) DOF() int { return len(a.joints) }

// Chain exposes the underlying kinematic tree.
func (a *Arm) Chain() *Chain { return a.chain }

// Sensor returns the range sensor mounted on the last link.
func (a *Arm) Sensor() *RangeSensor { return a.sensor }

// SetBase places the arm's root frame in the world. Call UpdateKinematics afterwards.
func (a *Arm) SetBase(p Point) {
	root := a.chain.Local(a.chain.Root())
	root.Translation = p
	a.chain.SetLocal(a.chain.Root(), root)
}

// Base returns the world position of the arm's root frame.
func (a *Arm) Base() Point {
	return a.chain.Local(a.chain.Root()).Translation
}

// Q returns a copy of the configuration vector.
func (a *Arm) Q() Mat { return a.q.Clone() }

// QValues returns the joint angles as a slice.
func (a *Arm) QValues() []float64 { return a.q.Values() }

// SetQ assigns every joint angle from q (N x 1). Poses stay stale until
// UpdateKinematics runs.
func (a *Arm) SetQ(q Mat) {
	if q.Rows() != a.DOF() || q.Cols() != 1 {
		panic(errors.Errorf("configuration is %dx%d, arm has %d joints", q.Rows(), q.Cols(), a.DOF()))
	}
	a.q = q.Clone()
	for i, j := range a.joints {
		a.chain.SetJointAngle(j, a.q.Index(i))
	}
}

// UpdateKinematics recomputes every global pose from q.
func (a *Arm) UpdateKinematics() {
	a.chain.Recompute()
}

// JointPosition returns the world position of joint i.
func (a *Arm) JointPosition(i int) Point {
	return a.chain.Global(a.joints[i]).Translation
}

// LinkEnd returns the world position at the end of link i (0..N).
func (a *Arm) LinkEnd(i int) Point {
	return a.chain.Global(a.links[i]).Translation
}

// EEPos returns the end-effector position: the tip of the sensor-mount link.
func (a *Arm) EEPos() Point {
	return a.LinkEnd(len(a.links) - 1)
}

// ComputeForwardKinematics maps an offset in the end-effector frame to the world.
func (a *Arm) ComputeForwardKinematics(eeOffset Point) Point {
	return a.chain.Global(a.links[len(a.links)-1]).Apply(eeOffset)
}

// ComputeLinearJacobian returns the 2 x N linear-velocity Jacobian at a world
// point. Column i is axis x (p - o_i). Under the clockwise chain composition
// this is the negated positional derivative dp/dq_i, which is what lets the
// descent strategies subtract rate * J^T g with g pointing toward occupied space.
func (a *Arm) ComputeLinearJacobian(p Point) Mat {
	jac := NewMat(2, a.DOF())
	on := r3.Vector{X: p.X, Y: p.Y}
	for i := range a.joints {
		o := a.JointPosition(i)
		oi := r3.Vector{X: o.X, Y: o.Y}
		col := jointAxis.Cross(on.Sub(oi))
		jac.Set(0, i, col.X)
		jac.Set(1, i, col.Y)
	}
	return jac
}

// ComputeJacobianTransposeMove maps a Cartesian force at the end effector to a
// joint-space velocity: J^T * force.
func (a *Arm) ComputeJacobianTransposeMove(force Point) Mat {
	jac := a.ComputeLinearJacobian(a.EEPos())
	return jac.T().Mul(MatFromPoint(force))
}

// Sense recomputes kinematics and casts the sensor against the ground truth.
func (a *Arm) Sense(world *OccupancyField) {
	a.UpdateKinematics()
	a.sensor.Scan(world)
}
