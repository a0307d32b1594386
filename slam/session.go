package slam

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// targetReach is how close the end effector must come before the next target is chosen.
const targetReach = 2.0

// Motion produces the truth arm's next configuration.
type Motion interface {
	Next(truth *Arm) (Mat, error)
}

// TrajectoryMotion replays a recorded trajectory.
type TrajectoryMotion struct {
	Reader *TrajectoryReader
}

// Next returns the next recorded configuration.
func (m TrajectoryMotion) Next(*Arm) (Mat, error) {
	return m.Reader.Next()
}

// TargetMotion drives the end effector through targets in turn with
// task-space steps, cycling back to the first after the last.
type TargetMotion struct {
	Targets []Point
	Gain    float64
	current int
}

// Next steps the truth arm toward the current target.
func (m *TargetMotion) Next(truth *Arm) (Mat, error) {
	if len(m.Targets) == 0 {
		return truth.Q(), nil
	}
	truth.UpdateKinematics()
	if Distance(truth.EEPos(), m.Targets[m.current]) < targetReach {
		m.current = (m.current + 1) % len(m.Targets)
	}
	TaskSpaceStep(truth, m.Targets[m.current], m.Gain)
	return truth.Q(), nil
}

// HoldMotion keeps the arm where it is.
type HoldMotion struct{}

// Next returns the current configuration.
func (HoldMotion) Next(truth *Arm) (Mat, error) { return truth.Q(), nil }

// Session runs the tick pipeline: move the truth arm, sense, apply noisy
// odometry, estimate, fuse, record. It is single-threaded; observers run on
// the session goroutine after each tick.
type Session struct {
	cfg       *Config
	log       *zap.SugaredLogger
	Ground    *OccupancyField
	Field     *FusedDistanceField
	Rig       *Rig
	estimator PoseEstimator
	motion    Motion
	noise     *JointNoise

	metrics   *MetricsWriter
	history   *MetricsHistory
	trails    *Trails
	recorded  []Mat
	observers []func(*Session, TickMetrics)
	commands  chan func(*Session)
	tick      int
}

// NewSession wires a session over a loaded ground truth. The arm base defaults
// to the map centre when the configured base is the origin.
func NewSession(cfg *Config, ground *OccupancyField, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	field, err := NewFusedDistanceField(ground, cfg.Map.FieldParams())
	if err != nil {
		return nil, errors.Wrap(err, "creating fused field")
	}

	armCfg := *cfg
	if armCfg.Arm.Base == (Point{}) {
		armCfg.Arm.Base = Point{X: float64(ground.Width) / 2, Y: float64(ground.Height) / 2}
	}
	rig, err := NewRig(armCfg)
	if err != nil {
		return nil, err
	}

	estimator, err := NewPoseEstimator(cfg.Experiment.Mode, cfg.Estimator)
	if err != nil {
		return nil, err
	}

	seed := cfg.Experiment.Seed
	rig.Truth.Sensor().SetNoise(NewRangeNoise(cfg.Sensor.RangeNoise, rand.NewPCG(seed, 0x9e3779b97f4a7c15)))

	var motion Motion = HoldMotion{}
	if len(cfg.Experiment.Targets) > 0 {
		motion = &TargetMotion{Targets: cfg.Experiment.Targets, Gain: cfg.Experiment.TargetGain}
	}

	return &Session{
		cfg:       cfg,
		log:       log,
		Ground:    ground,
		Field:     field,
		Rig:       rig,
		estimator: estimator,
		motion:    motion,
		noise:     NewJointNoise(cfg.JointNoise, rand.NewPCG(seed, 0xbf58476d1ce4e5b9)),
		history:   NewMetricsHistory(500),
		trails:    NewTrails(),
		commands:  make(chan func(*Session), 16),
	}, nil
}

// SetMotion replaces the truth arm's driver.
func (s *Session) SetMotion(m Motion) { s.motion = m }

// SetMetricsWriter directs per-tick records to w.
func (s *Session) SetMetricsWriter(w *MetricsWriter) { s.metrics = w }

// OnTick registers a callback run after every completed tick.
func (s *Session) OnTick(fn func(*Session, TickMetrics)) {
	s.observers = append(s.observers, fn)
}

// Mode returns the running estimation strategy.
func (s *Session) Mode() Mode { return s.estimator.Mode() }

// Ticks returns the number of completed ticks.
func (s *Session) Ticks() int { return s.tick }

// History returns the retained per-tick records.
func (s *Session) History() *MetricsHistory { return s.history }

// Trails returns the recorded end-effector paths.
func (s *Session) Trails() *Trails { return s.trails }

// Recorded returns the truth configurations visited so far.
func (s *Session) Recorded() []Mat { return append([]Mat(nil), s.recorded...) }

func (s *Session) gradientSource() GradientSource {
	if s.cfg.Estimator.GradientSource == GradientSourceGroundTruth {
		return s.Ground
	}
	return s.Field
}

// Enqueue schedules fn to run on the session goroutine before the next tick.
// It is safe to call from other goroutines and reports false when the queue is full.
func (s *Session) Enqueue(fn func(*Session)) bool {
	select {
	case s.commands <- fn:
		return true
	default:
		return false
	}
}

func (s *Session) drainCommands() {
	for {
		select {
		case fn := <-s.commands:
			fn(s)
		default:
			return
		}
	}
}

// Perturb kicks the tracking configuration by independent uniform offsets in
// [-scale, scale] per joint. The free sensor is displaced by the same change
// in the tracking sensor's pose.
func (s *Session) Perturb(scale float64) {
	arm := s.Rig.Tracking
	before := arm.Sensor().Pose()
	arm.SetQ(arm.Q().Add(s.noise.Kick(arm.DOF(), scale)))
	arm.UpdateKinematics()
	after := arm.Sensor().Pose()

	pose := s.Rig.Free.LocalPose()
	pose.Translation = pose.Translation.Add(after.Translation.Sub(before.Translation))
	pose.Rotation += after.Rotation - before.Rotation
	s.Rig.Free.SetPose(pose)
}

// Tick advances the simulation by one step. It returns ErrExhaustedTrajectory
// when the motion source has nothing left.
func (s *Session) Tick() (TickMetrics, error) {
	s.drainCommands()

	truth := s.Rig.Truth
	prev := truth.Q()
	next, err := s.motion.Next(truth)
	if err != nil {
		truth.SetQ(prev)
		truth.UpdateKinematics()
		return TickMetrics{}, err
	}
	if next.Rows() != truth.DOF() {
		return TickMetrics{}, errors.Errorf("motion produced %d joints, arm has %d", next.Rows(), truth.DOF())
	}

	truth.SetQ(next)
	truth.Sense(s.Ground)
	s.recorded = append(s.recorded, next.Clone())

	s.Rig.ApplyOdometry(s.noise.Perturb(next.Sub(prev)))

	est := s.estimator.Step(s.Rig, s.gradientSource())
	s.Field.FuseRayCloud(est.Source.Origin, est.Source.Rotation, est.Source.Hits, est.Source.Gradients)

	classification, distance := s.Field.ComputeError(s.Ground)
	m := TickMetrics{
		Tick:                s.tick,
		FieldError:          distance,
		ClassificationError: classification,
		EEPosError:          Distance(est.EE, est.Reference),
		OdomQ:               s.Rig.Odometry.QValues(),
		TrackQ:              s.Rig.Tracking.QValues(),
		TrueQ:               truth.QValues(),
		Hits:                len(est.Source.Hits),
	}
	s.tick++

	s.history.Add(m)
	s.trails.Add(truth.EEPos(), s.Rig.Odometry.EEPos(), est.EE)
	if s.metrics != nil {
		if err := s.metrics.Write(m); err != nil {
			return m, errors.Wrap(err, "writing metrics")
		}
	}
	for _, fn := range s.observers {
		fn(s, m)
	}
	return m, nil
}

// Run ticks until the configured tick limit, trajectory exhaustion or
// cancellation, then flushes metrics and the recorded trajectory.
func (s *Session) Run(ctx context.Context) error {
	limit := s.cfg.Experiment.MaxTicks
	s.log.Infow("[SESSION] Starting", "mode", s.Mode(), "maxTicks", limit,
		"map", []int{s.Ground.Width, s.Ground.Height}, "rays", s.Rig.Truth.Sensor().RayCount())

	var runErr error
	for limit == 0 || s.tick < limit {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		m, err := s.Tick()
		if errors.Is(err, ErrExhaustedTrajectory) {
			s.log.Infow("[SESSION] Trajectory exhausted", "ticks", s.tick)
			break
		}
		if err != nil {
			runErr = errors.Wrapf(err, "tick %d", s.tick)
			break
		}
		if m.Hits == 0 {
			s.log.Debugw("[SESSION] Empty scan", "tick", m.Tick)
		}
	}

	if err := s.Flush(); err != nil && runErr == nil {
		runErr = err
	}
	if last, ok := s.history.Last(); ok {
		s.log.Infow("[SESSION] Finished", "ticks", s.tick,
			"tsdfError", last.FieldError, "classificationError", last.ClassificationError,
			"eePosError", last.EEPosError)
	}
	return runErr
}

// Flush writes buffered metrics and, when configured, the recorded trajectory.
func (s *Session) Flush() error {
	if s.metrics != nil {
		if err := s.metrics.Flush(); err != nil {
			return errors.Wrap(err, "flushing metrics")
		}
	}
	if path := s.cfg.Experiment.RecordTrajectory; path != "" {
		if err := SaveTrajectory(path, s.recorded); err != nil {
			return err
		}
		s.log.Infow("[SESSION] Trajectory recorded", "path", path, "configs", len(s.recorded))
	}
	return nil
}
