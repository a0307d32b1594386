package slam

import (
	"github.com/pkg/errors"
)

// Rig holds every body simulated in a session: the physical arm, an arm
// driven by odometry only, an arm corrected by configuration descent, and a
// free-flying sensor corrected by pose descent.
type Rig struct {
	Truth    *Arm
	Odometry *Arm
	Tracking *Arm
	Free     *RangeSensor
}

// NewRig builds the four bodies from cfg, all at q = 0 on the configured base.
func NewRig(cfg Config) (*Rig, error) {
	build := func(name string) (*Arm, error) {
		arm, err := NewArm(cfg.Arm.LinkLengths, cfg.Arm.SensorMount, cfg.Sensor)
		if err != nil {
			return nil, errors.Wrapf(err, "building %s arm", name)
		}
		arm.SetBase(cfg.Arm.Base)
		arm.UpdateKinematics()
		return arm, nil
	}

	truth, err := build("truth")
	if err != nil {
		return nil, err
	}
	odom, err := build("odometry")
	if err != nil {
		return nil, err
	}
	track, err := build("tracking")
	if err != nil {
		return nil, err
	}
	free, err := NewFreeSensor(cfg.Sensor)
	if err != nil {
		return nil, errors.Wrap(err, "building free sensor")
	}
	free.SetPose(truth.Sensor().Pose())

	return &Rig{Truth: truth, Odometry: odom, Tracking: track, Free: free}, nil
}

// ApplyOdometry adds a measured joint delta to the odometry and tracking arms.
func (r *Rig) ApplyOdometry(delta Mat) {
	for _, arm := range []*Arm{r.Odometry, r.Tracking} {
		arm.SetQ(arm.Q().Add(delta))
		arm.UpdateKinematics()
	}
}

// FusionSource is the pose and cloud a strategy hands to the fused field.
type FusionSource struct {
	Origin    Point
	Rotation  float64
	Hits      []Point
	Gradients []Point
}

// Estimate is one strategy step's outcome.
type Estimate struct {
	Source FusionSource
	// EE is the estimated end-effector (or free sensor) position, compared
	// against Reference for the position error metric.
	EE        Point
	Reference Point
}

// PoseEstimator is one experiment mode's per-tick estimation step. The truth
// arm has already sensed the world when Step runs.
type PoseEstimator interface {
	Mode() Mode
	Step(rig *Rig, src GradientSource) Estimate
}

// NewPoseEstimator selects the strategy for mode.
func NewPoseEstimator(mode Mode, cfg EstimatorConfig) (PoseEstimator, error) {
	switch mode {
	case ModeGroundTruth:
		return groundTruthEstimator{}, nil
	case ModeOdometry:
		return odometryEstimator{}, nil
	case ModeConstrainedDescent:
		return &constrainedEstimator{cfg: cfg}, nil
	case ModeUnconstrainedDescent:
		return &unconstrainedEstimator{cfg: cfg}, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "unknown mode %q", mode)
}

func sourceFrom(s *RangeSensor, src GradientSource) FusionSource {
	s.ComputeGradients(src, true)
	pose := s.Pose()
	return FusionSource{
		Origin:    pose.Translation,
		Rotation:  pose.Rotation,
		Hits:      s.Cloud(true),
		Gradients: s.Gradients,
	}
}

type groundTruthEstimator struct{}

func (groundTruthEstimator) Mode() Mode { return ModeGroundTruth }

func (groundTruthEstimator) Step(rig *Rig, src GradientSource) Estimate {
	ee := rig.Truth.EEPos()
	return Estimate{Source: sourceFrom(rig.Truth.Sensor(), src), EE: ee, Reference: ee}
}

type odometryEstimator struct{}

func (odometryEstimator) Mode() Mode { return ModeOdometry }

func (odometryEstimator) Step(rig *Rig, src GradientSource) Estimate {
	rig.Odometry.UpdateKinematics()
	sensor := rig.Odometry.Sensor()
	sensor.AdoptReadings(rig.Truth.Sensor())
	return Estimate{Source: sourceFrom(sensor, src), EE: rig.Odometry.EEPos(), Reference: rig.Truth.EEPos()}
}

type constrainedEstimator struct {
	cfg EstimatorConfig
}

func (e *constrainedEstimator) Mode() Mode { return ModeConstrainedDescent }

func (e *constrainedEstimator) Step(rig *Rig, src GradientSource) Estimate {
	sensor := rig.Tracking.Sensor()
	sensor.AdoptReadings(rig.Truth.Sensor())
	ConfigGradientDescent(rig.Tracking, src, e.cfg.IterationCount, e.cfg.ConfigStepRate, true)
	return Estimate{Source: sourceFrom(sensor, src), EE: rig.Tracking.EEPos(), Reference: rig.Truth.EEPos()}
}

// unconstrainedEstimator carries the free sensor forward by the odometry
// arm's sensor motion, then corrects it by pose descent.
type unconstrainedEstimator struct {
	cfg      EstimatorConfig
	lastOdom *Transform2D
}

func (e *unconstrainedEstimator) Mode() Mode { return ModeUnconstrainedDescent }

func (e *unconstrainedEstimator) Step(rig *Rig, src GradientSource) Estimate {
	rig.Odometry.UpdateKinematics()
	odom := rig.Odometry.Sensor().Pose()
	if e.lastOdom != nil {
		pose := rig.Free.LocalPose()
		pose.Translation = pose.Translation.Add(odom.Translation.Sub(e.lastOdom.Translation))
		pose.Rotation += odom.Rotation - e.lastOdom.Rotation
		rig.Free.SetPose(pose)
	}
	e.lastOdom = &odom

	rig.Free.AdoptReadings(rig.Truth.Sensor())
	FreeGradientDescent(rig.Free, src, e.cfg.IterationCount, e.cfg.TranslationStepRate, e.cfg.RotationStepRate, true)
	return Estimate{
		Source:    sourceFrom(rig.Free, src),
		EE:        rig.Free.Pose().Translation,
		Reference: rig.Truth.Sensor().Pose().Translation,
	}
}
