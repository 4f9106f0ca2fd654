// Package main provides the CLI wrapper for the launchcore vision engine.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cor-mez/launchcore/internal/config"
	"github.com/cor-mez/launchcore/pkg/capture"
	"github.com/cor-mez/launchcore/pkg/vision"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	videoPath := flag.String("video", "", "Path to input video file (overrides config)")
	assumedFPS := flag.Float64("assumed-fps", 0, "Fallback frame rate when the container reports none (overrides config)")
	csvDir := flag.String("telemetry-dir", "", "Directory to dump the telemetry CSV to on exit (overrides config)")
	controlAddr := flag.String("control-addr", "", "UDP address for the telemetry.pause/telemetry.dump control socket (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose per-frame logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "launchcore - deterministic offline runner for the golf launch monitor vision core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -video clip.mov [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -video shot.mov                  # Run with default settings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config launchcore.toml          # Run with custom config\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -video shot.mov -telemetry-dir .  # Dump telemetry CSV on exit\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("launchcore version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *videoPath != "" {
		cfg.Offline.VideoPath = *videoPath
	}
	if *assumedFPS > 0 {
		cfg.Offline.AssumedFPS = *assumedFPS
	}
	if *csvDir != "" {
		cfg.Telemetry.CSVOutputDir = *csvDir
	}
	if *controlAddr != "" {
		cfg.Telemetry.ControlAddr = *controlAddr
	}
	if cfg.Offline.VideoPath == "" {
		log.Fatalf("no input video: pass -video or set offline.video_path in the config file")
	}

	logger := vision.NewPhaseLogger(os.Stdout)
	if len(cfg.Telemetry.EnabledPhases) > 0 {
		for p := vision.PhaseCamera; p <= vision.PhaseDebug; p++ {
			enabled := false
			for _, name := range cfg.Telemetry.EnabledPhases {
				if name == p.String() {
					enabled = true
				}
			}
			logger.SetEnabled(p, enabled)
		}
	}
	var ring *vision.TelemetryRing
	if cfg.Telemetry.RingCapacity > 0 {
		ring = vision.NewTelemetryRing(cfg.Telemetry.RingCapacity)
	}

	var control *vision.TelemetryControlHandler
	if cfg.Telemetry.ControlAddr != "" && ring != nil {
		control, err = vision.NewTelemetryControlHandler(cfg.Telemetry.ControlAddr, ring, cfg.Telemetry.CSVOutputDir)
		if err != nil {
			log.Fatalf("Failed to start telemetry control socket: %v", err)
		}
		control.Start()
		defer control.Close()
		log.Printf("Telemetry control socket listening on %s", cfg.Telemetry.ControlAddr)
	}

	pipeline := vision.NewPipeline(&vision.PipelineConfig{
		BallLock:  cfg.VisionBallLock(),
		Detector:  cfg.VisionDetector(),
		Motion:    cfg.VisionMotion(),
		RS:        cfg.VisionRS(),
		Impulse:   cfg.VisionImpulse(),
		Authority: cfg.VisionAuthority(),
		Lifecycle: cfg.VisionLifecycle(),
		Logger:    logger,
		Telemetry: ring,
	})
	pipeline.ConfigVersion = cfg.Version()

	src, err := capture.OpenVideoFile(cfg.Offline.VideoPath, cfg.Offline.AssumedFPS)
	if err != nil {
		log.Fatalf("Failed to open video file: %v", err)
	}
	defer src.Close()

	intrinsics, err := capture.LoadIntrinsicsSidecar(cfg.Offline.VideoPath)
	if err != nil {
		log.Fatalf("Failed to load intrinsics sidecar: %v", err)
	}

	log.Printf("Decoding %s at effective %.1f fps", cfg.Offline.VideoPath, src.EffectiveFPS())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})

	var shotCount int
	go func() {
		defer close(stopped)
		_, runErr := src.Run(intrinsics, func(index int, ts float64, w, h int) {
			if *verbose {
				log.Printf("frame %d t=%.4f %dx%d", index, ts, w, h)
			}
		}, func(frame *vision.PixelFrame, intr *vision.Intrinsics) *vision.ShotRecord {
			rec := pipeline.ProcessFrame(frame, intr)
			if rec != nil {
				shotCount++
				log.Println(rec.String())
			}
			return rec
		})
		if runErr != nil {
			log.Printf("offline runner stopped with error: %v", runErr)
		}
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-stopped:
		log.Printf("Reached end of video; processed %d shot record(s)", shotCount)
	}

	if ring != nil && cfg.Telemetry.CSVOutputDir != "" {
		path, err := ring.Dump(cfg.Telemetry.CSVOutputDir, time.Now())
		if err != nil {
			log.Printf("telemetry dump failed: %v", err)
		} else {
			log.Printf("telemetry dumped to %s", path)
		}
	}
}
