package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"NetScope/internal/anomaly"
	"NetScope/internal/api"
	"NetScope/internal/broadcast"
	"NetScope/internal/capture"
	"NetScope/internal/config"
	"NetScope/internal/export"
	"NetScope/internal/metrics"
	"NetScope/internal/model"
	"NetScope/internal/sink"
	"NetScope/internal/stream"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log.Println("Starting netscope...")

	// 1. Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	// 2. Optional alert-history sink
	var alertSink *sink.ClickHouseSink
	if cfg.Sink.ClickHouse.Enabled {
		alertSink, err = sink.NewClickHouseSink(cfg.Sink.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to initialize ClickHouse sink: %v", err)
		}
	}

	// 3. Anomaly detector, fanning alerts out to metrics and the sink
	detector, err := anomaly.NewDetector(cfg.Anomaly, func(alert model.AnomalyAlert) {
		metrics.ObserveAlert(alert.Level)
		if alertSink != nil {
			alertSink.Record(alert)
		}
	})
	if err != nil {
		log.Fatalf("Failed to create anomaly detector: %v", err)
	}

	// 4. Broadcast hub and optional NATS exporter
	hub := broadcast.New()
	hub.OnDrop(func(broadcast.Subscriber) { metrics.ObserveDroppedSubscriber() })

	if cfg.Export.NATS.Enabled {
		exporter, err := export.NewNATSExporter(cfg.Export.NATS)
		if err != nil {
			log.Fatalf("Failed to initialize NATS exporter: %v", err)
		}
		hub.Register(exporter)
	}

	// 5. Packet source: replay file when configured, live capture otherwise.
	// A live-capture failure degrades the service instead of killing it; the
	// API stays up and capture can be restarted through /capture/settings.
	var (
		source     stream.Source
		sniffer    *capture.Sniffer
		replayer   *capture.Replayer
		controller api.CaptureController
	)
	if cfg.Capture.PcapFile != "" {
		replayer, err = capture.NewReplayer(cfg.Capture.PcapFile, cfg.Capture.QueueSize)
		if err != nil {
			log.Fatalf("Failed to open replay file: %v", err)
		}
		source = replayer
	} else {
		sniffer = capture.NewSniffer(cfg.Capture.QueueSize)
		if cfg.Capture.Interface != "" {
			if err := sniffer.Start(cfg.Capture.Interface, cfg.Capture.BPF); err != nil {
				log.Printf("Packet capture unavailable: %v", err)
			}
		} else {
			log.Println("No capture interface configured; waiting for /capture/settings")
		}
		source = sniffer
		controller = sniffer
	}

	// 6. Streaming pipeline
	coordinator := stream.NewCoordinator(source, detector, hub)
	coordinator.OnPacket(func(model.PacketEvent) { metrics.ObservePacket() })
	coordinator.Start()

	// 7. HTTP API
	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.NewServer(detector, hub, controller).Handler(),
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 8. Wait for a shutdown signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	log.Println("Shutdown signal received, stopping...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	coordinator.Stop()
	// CloseAll also closes the NATS exporter, which is just another
	// subscriber on the hub.
	hub.CloseAll()
	if sniffer != nil {
		sniffer.Stop()
	}
	if replayer != nil {
		replayer.Stop()
	}
	if alertSink != nil {
		alertSink.Stop()
	}
	log.Println("Shutdown complete.")
}
