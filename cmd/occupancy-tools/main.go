package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/server"
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
			fmt.Printf("occupancy-tools %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("occupancy-tools - door and boundary diagnostics over JSON-RPC")
			fmt.Println()
			fmt.Println("Usage: occupancy-tools [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  OCCUPANCY_LOG_LEVEL=debug    Enable debug logging")
			fmt.Println()
			fmt.Println("Requests are read from stdin and answered on stdout, one JSON object per line.")
			return
		}
	}

	// stdout carries the protocol.
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(os.Getenv("OCCUPANCY_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	log.WithFields(log.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("occupancy-tools starting")

	srv := server.New(Version)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
