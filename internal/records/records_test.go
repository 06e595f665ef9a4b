package records

import (
	"testing"

	"github.com/vireodb/partscan/internal/wire"
)

func edgeDataSet() *wire.DataSet {
	return &wire.DataSet{
		ColumnNames: []string{ColSrc, ColDst, ColRank, "since", "weight"},
		Rows: []wire.Row{
			{Values: []wire.Value{
				wire.StringValue("alice"),
				wire.StringValue("bob"),
				wire.IntValue(0),
				wire.IntValue(2019),
				wire.FloatValue(0.8),
			}},
			{Values: []wire.Value{
				wire.StringValue("bob"),
				wire.StringValue("carol"),
				wire.IntValue(2),
				wire.IntValue(2021),
				wire.NullValue(),
			}},
		},
	}
}

func TestEdgeProcessorDecode(t *testing.T) {
	p := NewEdgeProcessor("knows")

	views, err := p.Decode(edgeDataSet())
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("Decode() returned %d rows, want 2", len(views))
	}

	src, ok := views[0].Get(ColSrc)
	if !ok || src.Str != "alice" {
		t.Fatalf("row 0 %s = %v, want alice", ColSrc, src)
	}
	m := views[1].Map()
	if m["since"] != int64(2021) {
		t.Fatalf("row 1 since = %v, want 2021", m["since"])
	}
}

func TestDecodeEdgesTyped(t *testing.T) {
	p := NewEdgeProcessor("knows")

	edges, err := p.DecodeEdges(edgeDataSet())
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("DecodeEdges() returned %d edges, want 2", len(edges))
	}

	e := edges[1]
	if e.Src.Str != "bob" || e.Dst.Str != "carol" || e.Rank != 2 {
		t.Fatalf("edge = %+v, want bob->carol rank 2", e)
	}
	if e.Label != "knows" {
		t.Fatalf("edge label = %q, want knows", e.Label)
	}
	if _, reserved := e.Props[ColSrc]; reserved {
		t.Fatal("reserved column leaked into edge properties")
	}
	if got := e.Props["since"].Int; got != 2021 {
		t.Fatalf("props[since] = %d, want 2021", got)
	}
}

func TestEdgeProcessorMissingColumn(t *testing.T) {
	p := NewEdgeProcessor("knows")
	ds := &wire.DataSet{ColumnNames: []string{ColSrc, ColDst}}

	if _, err := p.Decode(ds); err == nil {
		t.Fatal("Decode() accepted a dataset without the rank column")
	}
}

func TestEdgeProcessorRaggedRow(t *testing.T) {
	p := NewEdgeProcessor("knows")
	ds := &wire.DataSet{
		ColumnNames: []string{ColSrc, ColDst, ColRank},
		Rows:        []wire.Row{{Values: []wire.Value{wire.StringValue("alice")}}},
	}
	if _, err := p.Decode(ds); err == nil {
		t.Fatal("Decode() accepted a row narrower than the header")
	}
}

func TestVertexProcessorDecode(t *testing.T) {
	p := NewVertexProcessor("person")
	ds := &wire.DataSet{
		ColumnNames: []string{ColVID, "name"},
		Rows: []wire.Row{
			{Values: []wire.Value{wire.StringValue("v1"), wire.StringValue("alice")}},
		},
	}

	vertices, err := p.DecodeVertices(ds)
	if err != nil {
		t.Fatal(err)
	}
	if len(vertices) != 1 {
		t.Fatalf("DecodeVertices() returned %d vertices, want 1", len(vertices))
	}
	v := vertices[0]
	if v.ID.Str != "v1" || v.Props["name"].Str != "alice" {
		t.Fatalf("vertex = %+v, want v1/alice", v)
	}
}

func TestDecodeNilDataSet(t *testing.T) {
	p := NewEdgeProcessor("knows")
	views, err := p.Decode(nil)
	if err != nil || views != nil {
		t.Fatalf("Decode(nil) = (%v, %v), want (nil, nil)", views, err)
	}
}

func TestProcessorFor(t *testing.T) {
	p, err := ProcessorFor(wire.KindEdge, "knows")
	if err != nil || p.Kind() != wire.KindEdge {
		t.Fatalf("ProcessorFor(edge) = (%v, %v)", p, err)
	}
	p, err = ProcessorFor(wire.KindVertex, "person")
	if err != nil || p.Kind() != wire.KindVertex {
		t.Fatalf("ProcessorFor(vertex) = (%v, %v)", p, err)
	}
	if _, err := ProcessorFor(wire.EntityKind("table"), "x"); err == nil {
		t.Fatal("ProcessorFor accepted an unknown kind")
	}
}
