package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/config"
	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/dispatch"
	"github.com/ironsheep/occupancy-counter/internal/doors"
	"github.com/ironsheep/occupancy-counter/internal/httputil"
	"github.com/ironsheep/occupancy-counter/internal/inference"
	"github.com/ironsheep/occupancy-counter/internal/pipeline"
	"github.com/ironsheep/occupancy-counter/internal/publish"
	"github.com/ironsheep/occupancy-counter/internal/rooms"
	"github.com/ironsheep/occupancy-counter/internal/store"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
	"github.com/ironsheep/occupancy-counter/internal/uploader"
	"github.com/ironsheep/occupancy-counter/internal/video"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Printf("occupancy-counter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return exitOK
		}
	}

	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	settings, _, err := config.Parse("occupancy-counter", args, os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		log.WithError(err).Error("Invalid arguments")
		return exitUsage
	}
	if lvl, err := log.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("log_level", settings.LogLevel).Warn("Unknown log level, using info")
	}
	if err := settings.Validate(); err != nil {
		log.WithError(err).Error("Invalid configuration")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := count(ctx, settings); err != nil {
		var cfgErr *rooms.ConfigError
		if errors.As(err, &cfgErr) {
			log.WithError(err).Error("Invalid room configuration")
			return exitUsage
		}
		log.WithError(err).Error("Run failed")
		return exitFailed
	}
	return exitOK
}

// count wires every component from settings and runs the pipeline.
func count(ctx context.Context, s config.Settings) error {
	src, err := video.Open(s.Video)
	if err != nil {
		return err
	}
	defer src.Close()
	width, height := src.Size()
	fps := src.FPS()

	runID := uuid.NewString()
	log.WithFields(log.Fields{
		"run_id":  runID,
		"video":   s.Video,
		"fps":     fps,
		"width":   width,
		"height":  height,
		"version": Version,
	}).Info("Starting occupancy counter")

	tracker := inference.NewTrackerClient(
		httputil.NewStandardClient(&http.Client{Timeout: s.Doors.RequestTimeout}),
		s.Tracker.URL, s.Tracker.Model)
	if health, err := tracker.Health(ctx); err != nil {
		log.WithError(err).WithField("url", s.Tracker.URL).Warn("Tracker service not ready")
	} else {
		log.WithFields(log.Fields{"device": health.Device, "url": s.Tracker.URL}).Info("Tracker service ready")
	}

	var doorDetector *doors.Detector
	var boundaryDetector rooms.BoundaryDetector
	if s.Doors.AutoDetect && s.Rooms.ConfigPath == "" {
		model := inference.NewDetectorClient(
			httputil.NewStandardClient(&http.Client{Timeout: s.Doors.RequestTimeout}),
			s.Doors.DetectorURL, s.Doors.Model)
		doorDetector = doors.NewDetector(model, s.DoorConfig())
		boundaryDetector = doorDetector
	}
	registry := rooms.NewRegistry(s.RoomOptions(boundaryDetector))

	countCfg, err := s.CountingConfig(width, height)
	if err != nil {
		return err
	}
	session := counting.NewSession(countCfg)

	clock := timeutil.RealClock{}
	dispatcher, sup := newDispatcher(s, clock)
	if sup != nil {
		defer func() {
			if n := len(sup.Pending()); n > 0 {
				log.WithField("pending_uploads", n).Info("Waiting for clip uploads to finish")
			}
			sup.Wait()
		}()
	}

	var sinks []pipeline.EventSink
	var refreshes pipeline.RefreshRecorder
	if s.Sinks.EventsDB != "" {
		db, err := store.Open(s.Sinks.EventsDB, clock)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
		refreshes = db
	}
	if s.Sinks.MQTTBroker != "" {
		client, err := publish.Connect(ctx, s.Sinks.MQTTBroker, "occupancy-counter-"+runID[:8])
		if err != nil {
			log.WithError(err).Warn("MQTT publishing disabled")
		} else {
			defer client.Disconnect(250)
			pub := publish.NewPublisher(client, s.Sinks.MQTTTopic)
			sinks = append(sinks, pub)
			defer func() {
				st := pub.Stats()
				log.WithFields(log.Fields{"published": st.Published, "errors": st.Errors}).Info("MQTT publisher finished")
			}()
		}
	}

	var display pipeline.Display
	output := ""
	if s.Save {
		output = s.Output
	}
	disp, err := video.NewDisplay(video.DisplayOptions{Show: s.Show, SavePath: output, FPS: fps, Width: width, Height: height})
	if err != nil {
		return err
	}
	if disp != nil {
		defer disp.Close()
		display = disp
	}

	runner, err := pipeline.NewRunner(pipeline.Options{
		Conf:         s.Tracker.Conf,
		RefreshEvery: s.RefreshInterval(fps),
		AutoDetect:   doorDetector != nil,
		DebugDoors:   s.Doors.Debug,
		DebugMaxDraw: s.Doors.DebugMaxDraw,
	}, pipeline.Deps{
		Source:     src,
		Tracker:    tracker,
		Registry:   registry,
		Session:    session,
		Dispatcher: dispatcher,
		Doors:      doorDetector,
		Sinks:      sinks,
		Refreshes:  refreshes,
		Display:    display,
	})
	if err != nil {
		return err
	}

	_, err = runner.Run(ctx)
	return err
}

// newDispatcher builds the risk check and upload trigger. Without an API key
// crossings are only counted.
func newDispatcher(s config.Settings, clock timeutil.Clock) (*dispatch.Dispatcher, *dispatch.Supervisor) {
	if s.API.APIKey == "" {
		log.Warn("No API key configured, risk checks and clip uploads are disabled")
		return nil, nil
	}
	client := httputil.NewStandardClient(&http.Client{})

	upCfg := uploader.DefaultConfig()
	upCfg.BaseURL = s.API.BaseURL
	upCfg.APIKey = s.API.APIKey
	upCfg.CameraID = s.API.CameraID
	launcher := &uploader.Launcher{
		Config: upCfg,
		Open: func() (uploader.Source, error) {
			src, err := video.Open(s.Video)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		Client: client,
		Clock:  clock,
	}

	sup := dispatch.NewSupervisor(launcher, max(1, s.API.MaxUploadTriggers), clock)
	risk := dispatch.NewRiskClient(client, s.API.BaseURL, s.API.APIKey)
	return dispatch.NewDispatcher(s.DispatchConfig(), risk, sup), sup
}
