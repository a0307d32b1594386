package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command-line flags.
type AppOptions struct {
	ConfigFile string
	Mode       string
	Trajectory string
	Metrics    string
	Ticks      int
	Render     bool
	HttpMode   bool
	HttpPort   int
	MqttMode   bool
	CacheFile  string
	Debug      bool
}

// Application is what run drives; the real App and test doubles implement it.
type Application interface {
	ApplyOptions(opts AppOptions)
	RunSession() error
	RunService() error
}

func run(args []string, out io.Writer, app Application) error {
	fs := flag.NewFlagSet("armslam", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.Mode, "mode", "", "Override experiment mode: GroundTruth, Odometry, ConstrainedDescent, UnconstrainedDescent")
	fs.StringVar(&opts.Trajectory, "trajectory", "", "Override the trajectory file to replay")
	fs.StringVar(&opts.Metrics, "metrics", "", "Override the per-tick metrics output file")
	fs.IntVar(&opts.Ticks, "ticks", -1, "Override the tick limit (0 = until the trajectory ends)")
	fs.BoolVar(&opts.Render, "render", false, "Write field PNG, scene SVG, metrics plot and trails when the session ends")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve live state over HTTP")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Publish telemetry and accept commands over MQTT")
	fs.StringVar(&opts.CacheFile, "cache", "", "Persist the live snapshot to this JSON file and restore it on start")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable development logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "armslam version: %s\n", Version)
	if *showVersion {
		return nil
	}

	app.ApplyOptions(opts)

	if opts.HttpMode || opts.MqttMode {
		return app.RunService()
	}
	return app.RunSession()
}

func main() {
	app := NewApp()
	defer app.Close()

	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "armslam: %v\n", err)
		app.Close()
		os.Exit(1)
	}
}
