// Package export writes decoded scan rows to object storage. Output goes to
// a gocloud blob bucket (local filesystem, GCS or S3 selected by URL), in
// batched files per configured format, with a JSON manifest describing the
// run written on Close.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // local filesystem driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver

	"golang.org/x/sync/errgroup"

	"github.com/vireodb/partscan/internal/logging"
	"github.com/vireodb/partscan/internal/metrics"
	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/scan"
	"github.com/vireodb/partscan/internal/wire"
)

// Config describes one export run.
type Config struct {
	// Destination is a gocloud blob URL, e.g. "file:///data/out" or
	// "s3://bucket?region=us-east-1".
	Destination string
	Prefix      string

	// Formats lists the sinks to write each batch to.
	Formats []string

	// BatchRows flushes a file once this many rows are buffered.
	BatchRows int

	Space string
	Label string
	Kind  wire.EntityKind
}

// FileInfo records one written output file for the manifest.
type FileInfo struct {
	File     string `json:"file"`
	Sink     string `json:"sink"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// Manifest describes the contents of one export run.
type Manifest struct {
	Space     string     `json:"space"`
	Label     string     `json:"label"`
	Kind      string     `json:"kind"`
	Files     []FileInfo `json:"files"`
	TotalRows int64      `json:"total_rows"`
	Producer  string     `json:"producer"`
	CreatedAt time.Time  `json:"created_at"`
}

// Exporter buffers decoded rows and writes them out in batches. Not safe for
// concurrent use; the scan drain loop is the only writer.
type Exporter struct {
	cfg    Config
	bucket *blob.Bucket
	sinks  []sink
	log    *slog.Logger

	batch     []records.TableView
	fileSeq   int
	totalRows int64

	mu    sync.Mutex
	files []FileInfo
}

// New opens the destination bucket and prepares the configured sinks.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if len(cfg.Formats) == 0 {
		return nil, fmt.Errorf("no export formats configured")
	}
	if cfg.BatchRows <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchRows)
	}

	bucket, err := blob.OpenBucket(ctx, cfg.Destination)
	if err != nil {
		return nil, fmt.Errorf("open export bucket %s: %w", cfg.Destination, err)
	}

	sinks := make([]sink, 0, len(cfg.Formats))
	for _, f := range cfg.Formats {
		s, err := sinkFor(f, cfg.Kind, cfg.Label)
		if err != nil {
			bucket.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}

	log := slog.With("component", "export", "space", cfg.Space, "label", cfg.Label)
	if id := logging.CorrelationID(ctx); id != "" {
		log = log.With("correlation_id", id)
	}

	return &Exporter{
		cfg:    cfg,
		bucket: bucket,
		sinks:  sinks,
		log:    log,
	}, nil
}

// Consume decodes one round result and buffers its rows, flushing full
// batches to every sink.
func (e *Exporter) Consume(ctx context.Context, res *scan.Result) error {
	views, err := res.Decode()
	if err != nil {
		return fmt.Errorf("decode scan result: %w", err)
	}
	e.batch = append(e.batch, views...)

	for len(e.batch) >= e.cfg.BatchRows {
		views := e.batch[:e.cfg.BatchRows]
		e.batch = e.batch[e.cfg.BatchRows:]
		if err := e.flush(ctx, views); err != nil {
			return err
		}
	}
	return nil
}

// flush encodes one batch into every sink concurrently and writes the files.
func (e *Exporter) flush(ctx context.Context, views []records.TableView) error {
	if len(views) == 0 {
		return nil
	}

	seq := e.fileSeq
	e.fileSeq++
	e.totalRows += int64(len(views))

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range e.sinks {
		s := s
		key := e.fileKey(s, seq)
		g.Go(func() error {
			data, err := s.encode(views)
			if err != nil {
				return fmt.Errorf("%s sink: %w", s.name(), err)
			}
			if err := e.write(ctx, key, data); err != nil {
				return fmt.Errorf("%s sink: %w", s.name(), err)
			}

			sum := sha256.Sum256(data)
			e.record(FileInfo{
				File:     key,
				Sink:     s.name(),
				Checksum: hex.EncodeToString(sum[:]),
				RowCount: int64(len(views)),
				ByteSize: int64(len(data)),
			})
			if m := metrics.Get(); m != nil {
				labels := metrics.Labels{Space: e.cfg.Space, Label: e.cfg.Label}
				m.AddRowsExported(labels, s.name(), float64(len(views)))
				m.AddExportBytes(labels, s.name(), float64(len(data)))
			}
			e.log.Info("wrote export file",
				"sink", s.name(), "file", key, "rows", len(views), "bytes", len(data))
			return nil
		})
	}
	return g.Wait()
}

func (e *Exporter) write(ctx context.Context, key string, data []byte) error {
	w, err := e.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

func (e *Exporter) record(fi FileInfo) {
	e.mu.Lock()
	e.files = append(e.files, fi)
	e.mu.Unlock()
}

func (e *Exporter) fileKey(s sink, seq int) string {
	return fmt.Sprintf("%s%s/%s/part-%05d.%s", e.cfg.Prefix, e.cfg.Space, e.cfg.Label, seq, s.ext())
}

func (e *Exporter) manifestKey() string {
	return fmt.Sprintf("%s%s/%s/_manifest.json", e.cfg.Prefix, e.cfg.Space, e.cfg.Label)
}

// Close flushes the remaining partial batch, writes the manifest and
// releases the bucket.
func (e *Exporter) Close(ctx context.Context) error {
	if err := e.flush(ctx, e.batch); err != nil {
		e.bucket.Close()
		return err
	}
	e.batch = nil

	manifest := &Manifest{
		Space:     e.cfg.Space,
		Label:     e.cfg.Label,
		Kind:      string(e.cfg.Kind),
		Files:     e.files,
		TotalRows: e.totalRows,
		Producer:  "partscan",
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		e.bucket.Close()
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := e.write(ctx, e.manifestKey(), data); err != nil {
		e.bucket.Close()
		return err
	}

	return e.bucket.Close()
}
