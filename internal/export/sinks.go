package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/wire"
)

// sink encodes a batch of decoded rows into one output file's bytes.
type sink interface {
	name() string
	ext() string
	encode(views []records.TableView) ([]byte, error)
}

func sinkFor(format string, kind wire.EntityKind, label string) (sink, error) {
	switch format {
	case "parquet":
		return &parquetSink{kind: kind, label: label}, nil
	case "ndjson":
		return &ndjsonSink{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// parquetSink writes zstd-compressed parquet with the flattened row schema.
type parquetSink struct {
	kind  wire.EntityKind
	label string
}

func (s *parquetSink) name() string { return "parquet" }
func (s *parquetSink) ext() string  { return "parquet" }

func (s *parquetSink) encode(views []records.TableView) ([]byte, error) {
	now := time.Now().UTC()
	var buf bytes.Buffer

	switch s.kind {
	case wire.KindEdge:
		rows := make([]EdgeRow, 0, len(views))
		for _, v := range views {
			row, err := edgeRowFrom(s.label, v, now)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		if err := writeParquet(&buf, rows); err != nil {
			return nil, err
		}
	case wire.KindVertex:
		rows := make([]VertexRow, 0, len(views))
		for _, v := range views {
			row, err := vertexRowFrom(s.label, v, now)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		if err := writeParquet(&buf, rows); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown entity kind %q", s.kind)
	}

	return buf.Bytes(), nil
}

func writeParquet[T any](buf *bytes.Buffer, rows []T) error {
	w := parquet.NewGenericWriter[T](buf, parquet.Compression(&parquet.Zstd))
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ndjsonSink writes one JSON object per row, zstd-compressed.
type ndjsonSink struct{}

func (s *ndjsonSink) name() string { return "ndjson" }
func (s *ndjsonSink) ext() string  { return "ndjson.zst" }

func (s *ndjsonSink) encode(views []records.TableView) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for _, v := range views {
		if err := enc.Encode(v.Map()); err != nil {
			zw.Close()
			return nil, fmt.Errorf("encode row: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}
