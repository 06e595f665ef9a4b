package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/wire"
)

// EdgeRow is the flattened parquet schema for one scanned edge. Properties
// are carried as a JSON object string so one schema serves every edge type.
type EdgeRow struct {
	Src   string `parquet:"src"`
	Dst   string `parquet:"dst"`
	Rank  int64  `parquet:"rank"`
	Label string `parquet:"label"`
	Props string `parquet:"props"`

	ExportedAt time.Time `parquet:"exported_at,timestamp(millisecond)"`
}

// VertexRow is the flattened parquet schema for one scanned vertex.
type VertexRow struct {
	VID   string `parquet:"vid"`
	Label string `parquet:"label"`
	Props string `parquet:"props"`

	ExportedAt time.Time `parquet:"exported_at,timestamp(millisecond)"`
}

func edgeRowFrom(label string, v records.TableView, at time.Time) (EdgeRow, error) {
	src, ok := v.Get(records.ColSrc)
	if !ok {
		return EdgeRow{}, fmt.Errorf("edge row missing %s column", records.ColSrc)
	}
	dst, ok := v.Get(records.ColDst)
	if !ok {
		return EdgeRow{}, fmt.Errorf("edge row missing %s column", records.ColDst)
	}
	props, err := propsJSON(v)
	if err != nil {
		return EdgeRow{}, err
	}

	row := EdgeRow{
		Src:        src.AsString(),
		Dst:        dst.AsString(),
		Label:      label,
		Props:      props,
		ExportedAt: at,
	}
	if rank, ok := v.Get(records.ColRank); ok && rank.Kind == wire.ValueInt {
		row.Rank = rank.Int
	}
	return row, nil
}

func vertexRowFrom(label string, v records.TableView, at time.Time) (VertexRow, error) {
	vid, ok := v.Get(records.ColVID)
	if !ok {
		return VertexRow{}, fmt.Errorf("vertex row missing %s column", records.ColVID)
	}
	props, err := propsJSON(v)
	if err != nil {
		return VertexRow{}, err
	}
	return VertexRow{
		VID:        vid.AsString(),
		Label:      label,
		Props:      props,
		ExportedAt: at,
	}, nil
}

// propsJSON renders the non-reserved columns of a row as one JSON object.
func propsJSON(v records.TableView) (string, error) {
	props := make(map[string]any, len(v.Names))
	for i, n := range v.Names {
		switch n {
		case records.ColSrc, records.ColDst, records.ColRank, records.ColVID:
			continue
		}
		if i < len(v.Values) {
			props[n] = v.Values[i].Any()
		}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshal row properties: %w", err)
	}
	return string(data), nil
}
