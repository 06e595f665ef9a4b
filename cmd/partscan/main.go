// Command partscan runs a full partitioned scan of one label and exports the
// decoded rows to object storage.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vireodb/partscan/internal/checkpoint"
	"github.com/vireodb/partscan/internal/config"
	"github.com/vireodb/partscan/internal/export"
	"github.com/vireodb/partscan/internal/logging"
	"github.com/vireodb/partscan/internal/meta"
	"github.com/vireodb/partscan/internal/metrics"
	"github.com/vireodb/partscan/internal/pool"
	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/scan"
	"github.com/vireodb/partscan/internal/transport"
	"github.com/vireodb/partscan/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})
	log := logging.Component("main")

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace)
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server exited", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown complete")
			return
		}
		log.Error("scan failed", "error", err)
		os.Exit(1)
	}
	log.Info("scan finished cleanly")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	timeout := time.Duration(cfg.Cluster.RequestTimeout) * time.Second
	kind := wire.EntityKind(strings.ToLower(cfg.Scan.Kind))

	correlationID := logging.GenerateCorrelationID()
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log = log.With("correlation_id", correlationID)

	metaSvc := transport.NewMetaClient(cfg.Cluster.MetaEndpoint, timeout)
	metaClient := meta.NewClient(metaSvc)

	leaders, err := metaClient.Warm(ctx, cfg.Scan.Space)
	if err != nil {
		return err
	}
	parts := make([]scan.PartState, 0, len(leaders))
	for partID, leader := range leaders {
		parts = append(parts, scan.PartState{PartID: partID, Leader: leader})
	}
	log.Info("resolved partition leaders",
		"space", cfg.Scan.Space, "partitions", len(parts))

	conns, err := pool.New(transport.NewDialer(timeout), pool.Config{
		MaxIdlePerHost: cfg.Cluster.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer conns.Close()

	processor, err := records.ProcessorFor(kind, cfg.Scan.Label)
	if err != nil {
		return err
	}

	checkpoints, err := checkpoint.NewManager(checkpoint.Config{
		Enabled: cfg.Checkpoint.Enabled,
		Dir:     cfg.Checkpoint.Dir,
	})
	if err != nil {
		return err
	}

	it, err := scan.New(ctx, scan.Config{
		Meta:  metaClient,
		Conns: conns,
		Parts: parts,
		Template: &wire.ScanRequest{
			Space:         cfg.Scan.Space,
			Label:         cfg.Scan.Label,
			Kind:          kind,
			ReturnColumns: cfg.Scan.ReturnColumns,
			Filter:        cfg.Scan.Filter,
			Limit:         int64(cfg.Scan.Limit),
		},
		Space:          cfg.Scan.Space,
		Label:          cfg.Scan.Label,
		PartialSuccess: cfg.Scan.PartialSuccess,
		Processor:      processor,
		Checkpoints:    checkpoints,
		Logger:         logging.ScanLogger(correlationID, cfg.Scan.Space, cfg.Scan.Label, string(kind)),
	})
	if err != nil {
		return err
	}

	exporter, err := export.New(ctx, export.Config{
		Destination: cfg.Export.Destination,
		Prefix:      cfg.Export.Prefix,
		Formats:     cfg.Export.Formats,
		BatchRows:   cfg.Export.BatchRows,
		Space:       cfg.Scan.Space,
		Label:       cfg.Scan.Label,
		Kind:        kind,
	})
	if err != nil {
		return err
	}

	rounds, rows := 0, 0
	for it.HasNext() {
		res, err := it.Next(ctx)
		if errors.Is(err, scan.ErrExhausted) {
			break
		}
		if err != nil {
			exporter.Close(context.Background())
			return err
		}

		rounds++
		rows += res.RowCount()
		if res.Status == scan.StatusPartSuccess {
			log.Warn("round finished with partial success", "round", rounds)
		}

		if err := exporter.Consume(ctx, res); err != nil {
			exporter.Close(context.Background())
			return err
		}
	}

	if err := exporter.Close(ctx); err != nil {
		return err
	}
	log.Info("scan summary", "rounds", rounds, "rows", rows)
	return nil
}
