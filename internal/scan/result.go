package scan

import (
	"github.com/vireodb/partscan/internal/records"
	"github.com/vireodb/partscan/internal/wire"
)

// Status is the verdict of one scan round.
type Status string

const (
	StatusAllSuccess  Status = "ALL_SUCCESS"
	StatusPartSuccess Status = "PART_SUCCESS"
)

// Result is the immutable output of one round: the raw datasets collected
// from the hosts that succeeded (order not significant), the requested
// projection, the round verdict, and the processor that decodes the
// payload. The core never looks inside rows; decoding is the caller's move.
type Result struct {
	DataSets  []*wire.DataSet
	Columns   []string
	Status    Status
	Label     string
	Processor records.Processor
}

// RowCount sums the raw rows across all collected datasets.
func (r *Result) RowCount() int {
	n := 0
	for _, ds := range r.DataSets {
		n += ds.RowCount()
	}
	return n
}

// Decode runs the result's processor over every dataset.
func (r *Result) Decode() ([]records.TableView, error) {
	var views []records.TableView
	for _, ds := range r.DataSets {
		v, err := r.Processor.Decode(ds)
		if err != nil {
			return nil, err
		}
		views = append(views, v...)
	}
	return views, nil
}
