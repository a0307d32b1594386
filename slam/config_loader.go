package slam

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration that runs without any file: the
// three-link arm of the reference setup, a 1.5 rad fan of 60 rays and the
// ground-truth mode.
func DefaultConfig() *Config {
	field := DefaultFieldParams()
	return &Config{
		Map: MapConfig{
			Occupancy:       "world.png",
			Distance:        "dist.png",
			CellsPerUnit:    field.CellsPerUnit,
			Truncation:      field.Truncation,
			MaxRange:        field.MaxRange,
			MaxWeight:       field.MaxWeight,
			FreeSpaceWeight: field.FreeSpaceWeight,
			MinIncidence:    field.MinIncidence,
		},
		Arm: ArmConfig{
			LinkLengths: []float64{50, 40, 25},
		},
		Sensor: SensorConfig{
			MinAngle:          -0.75,
			MaxAngle:          0.75,
			AngularResolution: 0.025,
		},
		Estimator: EstimatorConfig{
			IterationCount:      10,
			TranslationStepRate: 0.1,
			RotationStepRate:    1e-4,
			ConfigStepRate:      1e-4,
			GradientSource:      GradientSourceMap,
		},
		JointNoise: 0.9,
		Experiment: ExperimentConfig{
			Mode:       ModeGroundTruth,
			MaxTicks:   1000,
			Seed:       1,
			TargetGain: 1e-5,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "armslam",
			ClientID:      "armslam",
		},
	}
}

// FieldParams extracts the fused-field parameters.
func (c MapConfig) FieldParams() FieldParams {
	return FieldParams{
		CellsPerUnit:    c.CellsPerUnit,
		Truncation:      c.Truncation,
		MaxRange:        c.MaxRange,
		MaxWeight:       c.MaxWeight,
		FreeSpaceWeight: c.FreeSpaceWeight,
		MinIncidence:    c.MinIncidence,
	}
}

// LoadConfig loads a YAML file over DefaultConfig, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config file not found: %s", path)
		}
		return nil, errors.Wrap(err, "reading config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "parsing config YAML")
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshaling config YAML")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// ApplyEnv overrides MQTT settings from MQTT_* environment variables.
func (c *Config) ApplyEnv() {
	overrides := map[string]*string{
		"MQTT_BROKER":         &c.MQTT.Broker,
		"MQTT_CLIENT_ID":      &c.MQTT.ClientID,
		"MQTT_USERNAME":       &c.MQTT.Username,
		"MQTT_PASSWORD":       &c.MQTT.Password,
		"MQTT_PUBLISH_PREFIX": &c.MQTT.PublishPrefix,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate reports every configuration problem at once, each wrapping
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs error
	add := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Wrapf(ErrInvalidConfig, format, args...))
	}

	if c.Map.Occupancy == "" {
		add("map.occupancy is required")
	}
	if err := c.Map.FieldParams().Validate(); err != nil {
		add("map: %v", err)
	}

	if len(c.Arm.LinkLengths) == 0 {
		add("arm.linkLengths needs at least one link")
	}
	for i, l := range c.Arm.LinkLengths {
		if l < 0 {
			add("arm.linkLengths[%d] is negative", i)
		}
	}
	if c.Arm.SensorMount < 0 {
		add("arm.sensorMount is negative")
	}

	if c.Sensor.AngularResolution <= 0 {
		add("sensor.angularResolution must be positive")
	}
	if c.Sensor.MaxAngle <= c.Sensor.MinAngle {
		add("sensor.maxAngle must exceed sensor.minAngle")
	}
	if c.Sensor.RangeNoise < 0 || c.Sensor.RangeNoise >= 1 {
		add("sensor.rangeNoise must be in [0, 1)")
	}

	if c.Estimator.IterationCount < 0 {
		add("estimator.iterationCount is negative")
	}
	switch c.Estimator.GradientSource {
	case GradientSourceMap, GradientSourceGroundTruth:
	default:
		add("estimator.gradientSource %q is not %q or %q",
			c.Estimator.GradientSource, GradientSourceMap, GradientSourceGroundTruth)
	}

	if c.JointNoise < 0 || c.JointNoise > 1 {
		add("jointNoise must be in [0, 1]")
	}

	if !c.Experiment.Mode.Valid() {
		add("experiment.mode %q is not one of %v", c.Experiment.Mode, Modes())
	}
	if c.Experiment.MaxTicks < 0 {
		add("experiment.maxTicks is negative")
	}
	if c.Experiment.Trajectory == "" && len(c.Experiment.Targets) == 0 && c.Experiment.MaxTicks == 0 {
		add("experiment needs a trajectory, targets or maxTicks")
	}

	return errs
}
