package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"pointcam/config"
	"pointcam/depth"
	"pointcam/depth/capture"
	"pointcam/depth/sink"
	"pointcam/notify"
	"pointcam/serve"
)

var (
	port       = flag.Int("port", 8080, "Port to host web frontend.")
	configPath = flag.String("config", "", "Path to JSON configuration file.")
	fake       = flag.Bool("fake", false, "Use the synthetic depth device instead of attached hardware.")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.Load(ctx, *configPath); err != nil {
			log.Fatalf("Failed to load config %v: %v", *configPath, err)
		}
		cfg = config.Get()
	}

	var driver capture.Driver = capture.NullDriver{}
	if *fake {
		driver = capture.NewFakeDriver()
	}

	preview := sink.NewPreview()
	cloud := sink.NewCloudStream()
	consumers := sink.Multi{preview, cloud}

	notifier := &notify.Notifier{}
	var push *notify.WebPush
	if cfg.PushDSN != "" {
		db, err := gorm.Open(mysql.Open(cfg.PushDSN), &gorm.Config{})
		if err != nil {
			log.Errorf("Failed to open push database, notifications disabled: %v", err)
		} else if push, err = notify.NewWebPush(db); err != nil {
			log.Errorf("Failed to set up web push, notifications disabled: %v", err)
			push = nil
		} else {
			notifier.Listeners = append(notifier.Listeners, push)
		}
	}

	// If no device is attached the host stays up with the pipeline inert:
	// the endpoints keep serving and no frames ever arrive.
	var pipeline *depth.Pipeline
	session, err := capture.Open(driver, capture.Config{
		ColorWidth:   cfg.ColorWidth,
		ColorHeight:  cfg.ColorHeight,
		DepthMode:    cfg.DepthMode,
		Synchronized: cfg.Synchronized,
	})
	switch {
	case errors.Is(err, capture.ErrNoDevice):
		log.Warnf("No depth device found; pipeline disabled")
	case err != nil:
		log.Errorf("Failed to open depth device, pipeline disabled: %v", err)
	default:
		pipeline = depth.NewPipeline(session, depth.LoopOptions{
			CaptureTimeout: cfg.CaptureTimeout(),
			RetrySleep:     cfg.RetrySleep(),
		})
		if err := pipeline.Start(); err != nil {
			log.Fatalf("Failed to start capture pipeline: %v", err)
		}
	}

	health := &serve.HealthServer{}
	if pipeline != nil {
		health.Pipeline = pipeline
	}

	mux := http.NewServeMux()
	mux.Handle("/mjpeg", preview)
	mux.Handle("/cloud", cloud)
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", promhttp.Handler())
	if push != nil {
		push.RegisterHandlers(mux)
	}

	go func() {
		log.Infof("Hosting web frontend on port %d", *port)
		log.Error(http.ListenAndServe(fmt.Sprintf(":%d", *port), handlers.LoggingHandler(os.Stdout, mux)))
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(cfg.TickInterval())
	defer tick.Stop()

	var done <-chan struct{}
	if pipeline != nil {
		done = pipeline.Done()
	}

	for {
		select {
		case <-tick.C:
			if pipeline == nil {
				continue
			}
			if f, ok := pipeline.Slot().TryDrain(); ok {
				consumers.OnFrame(f.Color(), f.Cloud(), f.Width, f.Height)
				f.Release()
			}
		case <-done:
			if err := pipeline.Err(); err != nil {
				log.Errorf("Capture pipeline failed: %v", err)
				notifier.PipelineFailed(err)
			}
			// Reopening the device is host policy; keep serving without it.
			done = nil
		case sig := <-sigs:
			log.Infof("Caught signal %v, shutting down", sig)
			if pipeline != nil {
				if err := pipeline.Stop(); err != nil {
					log.Errorf("Pipeline stopped with error: %v", err)
				}
			}
			return
		}
	}
}
