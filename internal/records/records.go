// Package records decodes raw scan payloads into typed rows. Decoding is
// deliberately outside the scan core: a Result carries a Processor reference
// and the caller decides when to pay for decoding.
package records

import (
	"fmt"

	"github.com/vireodb/partscan/internal/wire"
)

// Reserved column names carried by every scanned row of the matching kind.
const (
	ColSrc  = "_src"
	ColDst  = "_dst"
	ColRank = "_rank"
	ColVID  = "_vid"
)

// TableView is one decoded row in flat column order.
type TableView struct {
	Names  []string
	Values []wire.Value
}

// Get returns the cell of a named column.
func (v TableView) Get(name string) (wire.Value, bool) {
	for i, n := range v.Names {
		if n == name && i < len(v.Values) {
			return v.Values[i], true
		}
	}
	return wire.Value{}, false
}

// Map renders the row as plain name/value pairs for JSON-style output.
func (v TableView) Map() map[string]any {
	out := make(map[string]any, len(v.Names))
	for i, n := range v.Names {
		if i < len(v.Values) {
			out[n] = v.Values[i].Any()
		}
	}
	return out
}

// Processor turns a raw dataset into rows for one entity kind. One
// implementation exists per kind; the scan configuration selects it.
type Processor interface {
	Kind() wire.EntityKind
	Label() string
	Decode(ds *wire.DataSet) ([]TableView, error)
}

// Edge is a fully decoded edge row.
type Edge struct {
	Src   wire.Value
	Dst   wire.Value
	Rank  int64
	Label string
	Props map[string]wire.Value
}

// Vertex is a fully decoded vertex row.
type Vertex struct {
	ID    wire.Value
	Label string
	Props map[string]wire.Value
}

// EdgeProcessor decodes edge datasets of one label.
type EdgeProcessor struct {
	label string
}

func NewEdgeProcessor(label string) *EdgeProcessor {
	return &EdgeProcessor{label: label}
}

func (p *EdgeProcessor) Kind() wire.EntityKind { return wire.KindEdge }
func (p *EdgeProcessor) Label() string         { return p.label }

// Decode validates the dataset shape and returns its rows as table views.
func (p *EdgeProcessor) Decode(ds *wire.DataSet) ([]TableView, error) {
	if ds == nil {
		return nil, nil
	}
	if _, err := columnIndexes(ds.ColumnNames, ColSrc, ColDst, ColRank); err != nil {
		return nil, fmt.Errorf("edge dataset for label %s: %w", p.label, err)
	}
	return toViews(ds)
}

// DecodeEdges returns fully typed edges.
func (p *EdgeProcessor) DecodeEdges(ds *wire.DataSet) ([]Edge, error) {
	if ds == nil {
		return nil, nil
	}
	idx, err := columnIndexes(ds.ColumnNames, ColSrc, ColDst, ColRank)
	if err != nil {
		return nil, fmt.Errorf("edge dataset for label %s: %w", p.label, err)
	}

	edges := make([]Edge, 0, len(ds.Rows))
	for i, row := range ds.Rows {
		if len(row.Values) != len(ds.ColumnNames) {
			return nil, fmt.Errorf("edge row %d has %d values for %d columns", i, len(row.Values), len(ds.ColumnNames))
		}
		edge := Edge{
			Src:   row.Values[idx[ColSrc]],
			Dst:   row.Values[idx[ColDst]],
			Label: p.label,
			Props: propsOf(ds.ColumnNames, row.Values),
		}
		if rank := row.Values[idx[ColRank]]; rank.Kind == wire.ValueInt {
			edge.Rank = rank.Int
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// VertexProcessor decodes vertex datasets of one tag.
type VertexProcessor struct {
	label string
}

func NewVertexProcessor(label string) *VertexProcessor {
	return &VertexProcessor{label: label}
}

func (p *VertexProcessor) Kind() wire.EntityKind { return wire.KindVertex }
func (p *VertexProcessor) Label() string         { return p.label }

func (p *VertexProcessor) Decode(ds *wire.DataSet) ([]TableView, error) {
	if ds == nil {
		return nil, nil
	}
	if _, err := columnIndexes(ds.ColumnNames, ColVID); err != nil {
		return nil, fmt.Errorf("vertex dataset for tag %s: %w", p.label, err)
	}
	return toViews(ds)
}

// DecodeVertices returns fully typed vertices.
func (p *VertexProcessor) DecodeVertices(ds *wire.DataSet) ([]Vertex, error) {
	if ds == nil {
		return nil, nil
	}
	idx, err := columnIndexes(ds.ColumnNames, ColVID)
	if err != nil {
		return nil, fmt.Errorf("vertex dataset for tag %s: %w", p.label, err)
	}

	vertices := make([]Vertex, 0, len(ds.Rows))
	for i, row := range ds.Rows {
		if len(row.Values) != len(ds.ColumnNames) {
			return nil, fmt.Errorf("vertex row %d has %d values for %d columns", i, len(row.Values), len(ds.ColumnNames))
		}
		vertices = append(vertices, Vertex{
			ID:    row.Values[idx[ColVID]],
			Label: p.label,
			Props: propsOf(ds.ColumnNames, row.Values),
		})
	}
	return vertices, nil
}

// ProcessorFor selects the processor implementation for a kind.
func ProcessorFor(kind wire.EntityKind, label string) (Processor, error) {
	switch kind {
	case wire.KindEdge:
		return NewEdgeProcessor(label), nil
	case wire.KindVertex:
		return NewVertexProcessor(label), nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func columnIndexes(names []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	for _, r := range required {
		if _, ok := idx[r]; !ok {
			return nil, fmt.Errorf("missing required column %s", r)
		}
	}
	return idx, nil
}

func propsOf(names []string, values []wire.Value) map[string]wire.Value {
	props := make(map[string]wire.Value)
	for i, n := range names {
		switch n {
		case ColSrc, ColDst, ColRank, ColVID:
			continue
		}
		if i < len(values) {
			props[n] = values[i]
		}
	}
	return props
}

func toViews(ds *wire.DataSet) ([]TableView, error) {
	views := make([]TableView, 0, len(ds.Rows))
	for i, row := range ds.Rows {
		if len(row.Values) != len(ds.ColumnNames) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row.Values), len(ds.ColumnNames))
		}
		views = append(views, TableView{Names: ds.ColumnNames, Values: row.Values})
	}
	return views, nil
}
