package slam

// Point represents a 2D coordinate or vector in map units.
// One ground-truth raster cell is one map unit.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Transform2D is a planar rigid pose: a rotation angle (radians) and a translation.
type Transform2D struct {
	Rotation    float64 `json:"rotation"`
	Translation Point   `json:"translation"`
}

// Mode selects which pose-estimation strategy drives a session.
type Mode string

const (
	ModeGroundTruth          Mode = "GroundTruth"
	ModeOdometry             Mode = "Odometry"
	ModeConstrainedDescent   Mode = "ConstrainedDescent"
	ModeUnconstrainedDescent Mode = "UnconstrainedDescent"
)

// Modes lists every experiment mode in menu order.
func Modes() []Mode {
	return []Mode{ModeGroundTruth, ModeOdometry, ModeConstrainedDescent, ModeUnconstrainedDescent}
}

// Valid reports whether m names a known experiment mode.
func (m Mode) Valid() bool {
	for _, known := range Modes() {
		if m == known {
			return true
		}
	}
	return false
}

// MapConfig locates the ground-truth rasters and tunes the fused field.
type MapConfig struct {
	Occupancy       string  `yaml:"occupancy" json:"occupancy"`
	Distance        string  `yaml:"distance" json:"distance"`
	CellsPerUnit    float64 `yaml:"cellsPerUnit" json:"cellsPerUnit"`
	Truncation      float64 `yaml:"truncation" json:"truncation"`
	MaxRange        float64 `yaml:"maxRange" json:"maxRange"`
	MaxWeight       float64 `yaml:"maxWeight" json:"maxWeight"`
	FreeSpaceWeight float64 `yaml:"freeSpaceWeight" json:"freeSpaceWeight"`
	MinIncidence    float64 `yaml:"minIncidence" json:"minIncidence"` // floor for the ray/surface cosine weighting
}

// ArmConfig describes the articulated arm topology.
type ArmConfig struct {
	LinkLengths []float64 `yaml:"linkLengths" json:"linkLengths"`
	SensorMount float64   `yaml:"sensorMount" json:"sensorMount"` // length of the terminal link carrying the sensor
	Base        Point     `yaml:"base" json:"base"`
}

// SensorConfig holds the range sensor scan parameters.
type SensorConfig struct {
	MinAngle          float64 `yaml:"minAngle" json:"minAngle"`
	MaxAngle          float64 `yaml:"maxAngle" json:"maxAngle"`
	AngularResolution float64 `yaml:"angularResolution" json:"angularResolution"`
	RangeNoise        float64 `yaml:"rangeNoise" json:"rangeNoise"` // multiplicative noise half-width; 0 copies the true cloud
}

// EstimatorConfig holds the fixed iteration budget and step rates.
type EstimatorConfig struct {
	IterationCount      int     `yaml:"iterationCount" json:"iterationCount"`
	TranslationStepRate float64 `yaml:"translationStepRate" json:"translationStepRate"`
	RotationStepRate    float64 `yaml:"rotationStepRate" json:"rotationStepRate"`
	ConfigStepRate      float64 `yaml:"configStepRate" json:"configStepRate"`
	GradientSource      string  `yaml:"gradientSource" json:"gradientSource"` // "map" (fused field) or "groundTruth"
}

// Gradient sources the descent strategies can sample.
const (
	GradientSourceMap         = "map"
	GradientSourceGroundTruth = "groundTruth"
)

// ExperimentConfig selects the mode and the session inputs/outputs.
type ExperimentConfig struct {
	Mode             Mode    `yaml:"mode" json:"mode"`
	Trajectory       string  `yaml:"trajectory,omitempty" json:"trajectory,omitempty"`
	Metrics          string  `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	RecordTrajectory string  `yaml:"recordTrajectory,omitempty" json:"recordTrajectory,omitempty"`
	MaxTicks         int     `yaml:"maxTicks" json:"maxTicks"`
	Seed             uint64  `yaml:"seed" json:"seed"`
	Targets          []Point `yaml:"targets,omitempty" json:"targets,omitempty"`
	TargetGain       float64 `yaml:"targetGain" json:"targetGain"`
}

// OutputConfig lists optional artifacts written when a session ends.
type OutputConfig struct {
	FieldImage  string `yaml:"fieldImage,omitempty" json:"fieldImage,omitempty"`
	SceneSVG    string `yaml:"sceneSVG,omitempty" json:"sceneSVG,omitempty"`
	MetricsPlot string `yaml:"metricsPlot,omitempty" json:"metricsPlot,omitempty"`
	Trails      string `yaml:"trails,omitempty" json:"trails,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	Map        MapConfig        `yaml:"map" json:"map"`
	Arm        ArmConfig        `yaml:"arm" json:"arm"`
	Sensor     SensorConfig     `yaml:"sensor" json:"sensor"`
	Estimator  EstimatorConfig  `yaml:"estimator" json:"estimator"`
	JointNoise float64          `yaml:"jointNoise" json:"jointNoise"`
	Experiment ExperimentConfig `yaml:"experiment" json:"experiment"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	MQTT       MQTTConfig       `yaml:"mqtt" json:"mqtt"`
}

// TickMetrics is one line of the experiment metrics file.
type TickMetrics struct {
	Tick                int       `json:"tick"`
	FieldError          float64   `json:"tsdfError"`
	ClassificationError float64   `json:"classificationError"`
	EEPosError          float64   `json:"eePosError"`
	OdomQ               []float64 `json:"odomQ"`
	TrackQ              []float64 `json:"trackQ"`
	TrueQ               []float64 `json:"trueQ"`
	Hits                int       `json:"hits"`
}
