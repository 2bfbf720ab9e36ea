package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/httputil"
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

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("clip-uploader %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("clip-uploader - sample frames from a video or camera and post them for analysis")
			fmt.Println()
			fmt.Println("Usage: clip-uploader")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  CAMERA_SOURCE              Camera index or video file (default 0)")
			fmt.Println("  NEXT_API_BASE_URL          Ingestion service (default http://localhost:3000)")
			fmt.Println("  CV_API_KEY, ROOM_ID        Required")
			fmt.Println("  CAMERA_ID, VIDEO_ID        Optional identifiers")
			fmt.Println("  BATCH_SIZE                 Frames per post (default 5)")
			fmt.Println("  FLUSH_SECONDS              Post a partial batch after this long (default 5)")
			fmt.Println("  FRAME_SAMPLE_SECONDS       Seconds between sampled frames (default 1)")
			fmt.Println("  REQUEST_TIMEOUT_SECONDS    Per request timeout (default 90)")
			fmt.Println("  JPEG_QUALITY               1-100 (default 75)")
			fmt.Println("  POST_RETRIES               Extra attempts per post (default 2)")
			fmt.Println("  RETRY_BACKOFF_SECONDS      Linear backoff step (default 1.5)")
			fmt.Println("  MIN_POST_INTERVAL_SECONDS  Minimum gap between posts (default 1)")
			fmt.Println("  START_OFFSET_SECONDS       Skip into a video file (default 0)")
			fmt.Println("  MAX_DURATION_SECONDS       Stop after this much video")
			fmt.Println("  OCCUPANCY_LOG_LEVEL        debug, info or warn")
			return
		}
	}

	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(os.Getenv("OCCUPANCY_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	cfg, source, err := uploader.FromEnv(os.Getenv)
	if err != nil {
		log.WithError(err).Error("Invalid configuration")
		os.Exit(2)
	}

	src, err := video.Open(source)
	if err != nil {
		log.WithError(err).Error("Cannot open source")
		os.Exit(1)
	}
	defer src.Close()

	up, err := uploader.New(cfg, httputil.NewStandardClient(&http.Client{}), timeutil.RealClock{})
	if err != nil {
		log.WithError(err).Error("Invalid configuration")
		os.Exit(2)
	}

	// Interrupting stops sampling; the pending batch and finalize still run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := up.Run(ctx, src)
	if err != nil {
		log.WithError(err).Error("Upload failed")
		src.Close()
		os.Exit(1)
	}
	log.WithFields(log.Fields{
		"video_id":    stats.VideoID,
		"posts":       stats.Posts,
		"frames_sent": stats.FramesSent,
		"finalized":   stats.Finalized,
	}).Info("Upload finished")
}
