package slam

import (
	"math"

	"github.com/pkg/errors"
)

// RangeSensor is a planar ray-casting range finder attached to a chain node.
// Points and NoisyPoints hold hits in the sensor frame; Gradients holds the
// map gradient sampled at each hit. All three are replaced on every pass.
type RangeSensor struct {
	chain *Chain
	node  int

	MinAngle   float64
	MaxAngle   float64
	Resolution float64

	Points      []Point
	NoisyPoints []Point
	Gradients   []Point

	noise RangeNoise
}

func newRangeSensor(chain *Chain, node int, cfg SensorConfig) (*RangeSensor, error) {
	if cfg.AngularResolution <= 0 {
		return nil, errors.Errorf("sensor angular resolution must be positive, got %g", cfg.AngularResolution)
	}
	if cfg.MaxAngle <= cfg.MinAngle {
		return nil, errors.Errorf("sensor max angle %g must exceed min angle %g", cfg.MaxAngle, cfg.MinAngle)
	}
	return &RangeSensor{
		chain:      chain,
		node:       node,
		MinAngle:   cfg.MinAngle,
		MaxAngle:   cfg.MaxAngle,
		Resolution: cfg.AngularResolution,
		noise:      NoRangeNoise{},
	}, nil
}

// NewFreeSensor returns a sensor with an unconstrained 3-DOF pose, not bound
// to any arm. Its pose is the chain root, so the translation is taken as is.
func NewFreeSensor(cfg SensorConfig) (*RangeSensor, error) {
	chain := NewChain()
	return newRangeSensor(chain, chain.Root(), cfg)
}

// SetNoise installs the range perturbation used for the noisy cloud.
func (s *RangeSensor) SetNoise(n RangeNoise) {
	if n == nil {
		n = NoRangeNoise{}
	}
	s.noise = n
}

// Pose returns the sensor's global pose as of the last recompute.
func (s *RangeSensor) Pose() Transform2D {
	return s.chain.Global(s.node)
}

// LocalPose returns the sensor's pose relative to its parent.
func (s *RangeSensor) LocalPose() Transform2D {
	return s.chain.Local(s.node)
}

// SetPose sets the sensor's local pose and recomputes its chain.
func (s *RangeSensor) SetPose(t Transform2D) {
	s.chain.SetLocal(s.node, t)
	s.chain.Recompute()
}

// RayCount returns the number of rays cast per scan.
func (s *RangeSensor) RayCount() int {
	n := int(math.Ceil((s.MaxAngle-s.MinAngle)/s.Resolution - 1e-9))
	if n < 0 {
		return 0
	}
	return n
}

// Scan casts every ray against the ground truth from the current pose,
// keeping the nearest hit per ray. Rays leaving the grid record nothing.
func (s *RangeSensor) Scan(world *OccupancyField) {
	rays := s.RayCount()
	s.Points = make([]Point, 0, rays)
	s.NoisyPoints = make([]Point, 0, rays)
	s.Gradients = nil

	pose := s.Pose()
	maxDist := float64(world.Width + world.Height)
	for i := 0; i < rays; i++ {
		dt := s.MinAngle + float64(i)*s.Resolution
		dir := Direction(pose.Rotation + dt)

		for dl := 0.0; dl <= maxDist; dl++ {
			x, y := CellOf(pose.Translation.Add(dir.Scale(dl)))
			if !world.IsValid(x, y) {
				break
			}
			if world.Collides(x, y) {
				local := Direction(dt)
				s.Points = append(s.Points, local.Scale(dl))
				s.NoisyPoints = append(s.NoisyPoints, local.Scale(s.noise.Perturb(dl)))
				break
			}
		}
	}
}

// AdoptReadings replaces this sensor's clouds with copies of another's, as
// when an estimated arm consumes the readings of the physical sensor.
func (s *RangeSensor) AdoptReadings(other *RangeSensor) {
	s.Points = append([]Point(nil), other.Points...)
	s.NoisyPoints = append([]Point(nil), other.NoisyPoints...)
	s.Gradients = nil
}

// Cloud returns the noisy or true hit cloud in the sensor frame.
func (s *RangeSensor) Cloud(noisy bool) []Point {
	if noisy {
		return s.NoisyPoints
	}
	return s.Points
}

// WorldPoints maps a cloud into world coordinates through the current pose.
func (s *RangeSensor) WorldPoints(noisy bool) []Point {
	pose := s.Pose()
	cloud := s.Cloud(noisy)
	out := make([]Point, len(cloud))
	for i, p := range cloud {
		out[i] = pose.Apply(p)
	}
	return out
}

// ComputeGradients samples src at every hit of the chosen cloud, rounded to
// the nearest cell, replacing Gradients.
func (s *RangeSensor) ComputeGradients(src GradientSource, noisy bool) {
	world := s.WorldPoints(noisy)
	s.Gradients = make([]Point, len(world))
	for i, p := range world {
		x, y := NearestCell(p)
		s.Gradients[i] = src.Gradient(x, y)
	}
}
