package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/armslam/slam"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultFieldImage  = "field.png"
	defaultSceneSVG    = "scene.svg"
	defaultMetricsPlot = "metrics-plot.png"
	defaultTrails      = "trails.geojson"

	trailTolerance  = 0.5
	defaultKick     = 0.5
	snapshotEvery   = 10
	shutdownTimeout = 5 * time.Second
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *slam.Config
	StateTracker *slam.StateTracker
	MQTTClient   *slam.MQTTClient
	Publisher    *slam.Publisher
	Log          *zap.SugaredLogger

	// CLI Flags (effectively dependencies)
	ConfigFile string
	Mode       string
	Trajectory string
	Metrics    string
	Ticks      int
	Render     bool
	HttpPort   int
	MqttMode   bool
	HttpMode   bool
	CacheFile  string
	Debug      bool

	logger *zap.Logger
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: slam.NewStateTracker(snapshotEvery),
		Log:          zap.NewNop().Sugar(),
		Ticks:        -1,
	}
}

// ApplyOptions applies CLI options to the App instance and builds the logger.
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Mode = opts.Mode
	a.Trajectory = opts.Trajectory
	a.Metrics = opts.Metrics
	a.Ticks = opts.Ticks
	a.Render = opts.Render
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	a.CacheFile = opts.CacheFile
	a.Debug = opts.Debug
	if opts.CacheFile != "" {
		a.StateTracker = slam.NewStateTrackerWithCache(snapshotEvery, opts.CacheFile)
	}

	var (
		logger *zap.Logger
		err    error
	)
	if opts.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "armslam: logger unavailable: %v\n", err)
		return
	}
	a.logger = logger
	a.Log = logger.Sugar()
}

// Close flushes the logger.
func (a *App) Close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// loadConfig reads the config file and layers the CLI overrides on top.
func (a *App) loadConfig() (*slam.Config, error) {
	config, err := slam.LoadConfig(a.ConfigFile)
	if err != nil {
		if _, statErr := os.Stat(a.ConfigFile); !os.IsNotExist(statErr) {
			return nil, err
		}
		a.Log.Warnw("Config file not found, using defaults", "path", a.ConfigFile)
		config = slam.DefaultConfig()
		config.ApplyEnv()
	}

	if a.Mode != "" {
		config.Experiment.Mode = slam.Mode(a.Mode)
	}
	if a.Trajectory != "" {
		config.Experiment.Trajectory = a.Trajectory
	}
	if a.Metrics != "" {
		config.Experiment.Metrics = a.Metrics
	}
	if a.Ticks >= 0 {
		config.Experiment.MaxTicks = a.Ticks
	}
	if a.Render {
		fillOutputDefaults(&config.Output)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	a.Config = config
	return config, nil
}

func fillOutputDefaults(out *slam.OutputConfig) {
	if out.FieldImage == "" {
		out.FieldImage = defaultFieldImage
	}
	if out.SceneSVG == "" {
		out.SceneSVG = defaultSceneSVG
	}
	if out.MetricsPlot == "" {
		out.MetricsPlot = defaultMetricsPlot
	}
	if out.Trails == "" {
		out.Trails = defaultTrails
	}
}

// buildSession loads the map and wires the session's motion source and
// metrics file. The returned cleanup closes any opened files.
func (a *App) buildSession(config *slam.Config) (*slam.Session, func(), error) {
	ground, err := slam.LoadMapFiles(config.Map.Occupancy, config.Map.Distance)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading map")
	}
	a.Log.Infow("Loaded map", "occupancy", config.Map.Occupancy,
		"size", []int{ground.Width, ground.Height}, "occupied", ground.OccupiedCount())

	s, err := slam.NewSession(config, ground, a.Log)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.Log.Warnw("Closing session file", "error", err)
			}
		}
	}

	if path := config.Experiment.Trajectory; path != "" {
		reader, err := slam.OpenTrajectory(path, len(config.Arm.LinkLengths))
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, reader.Close)
		s.SetMotion(slam.TrajectoryMotion{Reader: reader})
	}

	if path := config.Experiment.Metrics; path != "" {
		mw, err := slam.CreateMetricsFile(path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, mw.Close)
		s.SetMetricsWriter(mw)
	}

	return s, cleanup, nil
}

// RunSession runs one experiment to completion and writes the configured outputs.
func (a *App) RunSession() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	s, cleanup, err := a.buildSession(config)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := s.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		a.Log.Infow("Session interrupted", "ticks", s.Ticks())
		runErr = nil
	}
	if err := a.writeOutputs(s); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// writeOutputs saves every artifact named in the output config.
func (a *App) writeOutputs(s *slam.Session) error {
	out := a.Config.Output
	if out.FieldImage != "" {
		if err := slam.NewSessionRenderer(s).SavePNG(out.FieldImage); err != nil {
			return err
		}
		a.Log.Infow("Saved field image", "path", out.FieldImage)
	}
	if out.SceneSVG != "" {
		if err := slam.NewSessionVectorRenderer(s).SaveSVG(out.SceneSVG); err != nil {
			return err
		}
		a.Log.Infow("Saved scene", "path", out.SceneSVG)
	}
	if out.MetricsPlot != "" {
		if err := slam.SaveMetricsPlot(out.MetricsPlot, s.History().Records(), string(s.Mode())); err != nil {
			return err
		}
		a.Log.Infow("Saved metrics plot", "path", out.MetricsPlot)
	}
	if out.Trails != "" {
		if err := slam.SaveTrails(out.Trails, s.Trails(), trailTolerance); err != nil {
			return err
		}
		a.Log.Infow("Saved trails", "path", out.Trails)
	}
	return nil
}

// RunService runs a session with live state served over HTTP and/or MQTT.
// After the session ends the HTTP endpoints stay up until interrupted.
func (a *App) RunService() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	s, cleanup, err := a.buildSession(config)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	s.OnTick(func(s *slam.Session, m slam.TickMetrics) {
		if err := a.StateTracker.Update(s, m); err != nil {
			a.Log.Warnw("Snapshot update failed", "tick", m.Tick, "error", err)
		}
	})

	if a.MqttMode {
		client, err := slam.InitMQTT(config.MQTT, a.Log, a.commandHandler(s, cancelSession))
		if err != nil {
			return errors.Wrap(err, "starting MQTT")
		}
		if client != nil {
			a.MQTTClient = client
			defer client.Disconnect()
			a.Publisher = slam.NewPublisher(client.GetClient(), config.MQTT.PublishPrefix, a.Log)
			s.OnTick(a.publishTick)
		}
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.HttpPort),
			Handler:           newHTTPServer(a.StateTracker, a.Log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			a.Log.Infow("[HTTP] Listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Log.Errorw("[HTTP] Server failed", "error", err)
			}
		}()
	}

	runErr := s.Run(sessionCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if err := a.writeOutputs(s); err != nil && runErr == nil {
		runErr = err
	}

	if server != nil {
		if runErr == nil {
			a.Log.Infow("Session finished; serving final state until interrupted")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warnw("[HTTP] Shutdown", "error", err)
		}
	}
	return runErr
}

func (a *App) publishTick(s *slam.Session, m slam.TickMetrics) {
	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishMetrics(s.Mode(), m); err != nil {
		a.Log.Debugw("[MQTT] Metrics not published", "tick", m.Tick, "error", err)
	}
	if err := a.Publisher.PublishSessionPoses(s); err != nil {
		a.Log.Debugw("[MQTT] Poses not published", "tick", m.Tick, "error", err)
	}
}

// commandHandler maps remote commands onto the session queue. Commands run
// on the session goroutine before the next tick.
func (a *App) commandHandler(s *slam.Session, cancel context.CancelFunc) slam.CommandHandler {
	return func(name string, payload []byte) {
		switch name {
		case "perturb":
			scale, err := parseScale(payload, defaultKick)
			if err != nil {
				a.Log.Warnw("[MQTT] Bad perturb payload", "payload", string(payload), "error", err)
				return
			}
			if !s.Enqueue(func(s *slam.Session) { s.Perturb(scale) }) {
				a.Log.Warnw("[MQTT] Command queue full, dropping perturb")
			}
		case "stop":
			cancel()
		default:
			a.Log.Warnw("[MQTT] Unknown command", "command", name)
		}
	}
}

// parseScale reads a kick scale from a bare number or {"scale": x}.
// An empty payload yields def.
func parseScale(payload []byte, def float64) (float64, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return def, nil
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	var body struct {
		Scale *float64 `json:"scale"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return 0, errors.Wrap(err, "parsing scale")
	}
	if body.Scale == nil {
		return def, nil
	}
	return *body.Scale, nil
}
