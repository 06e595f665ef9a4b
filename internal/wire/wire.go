// Package wire defines the scan protocol model exchanged with storage hosts.
// Transport and serialization of these types live outside the scan core;
// clients plug in via the pool and meta interfaces.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// HostAddr identifies a storage host.
type HostAddr struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a HostAddr) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// EntityKind selects what a scan returns.
type EntityKind string

const (
	KindEdge   EntityKind = "edge"
	KindVertex EntityKind = "vertex"
)

// ErrorCode is the per-partition status reported by a storage host.
type ErrorCode int32

const (
	CodeSucceeded     ErrorCode = 0
	CodeLeaderChanged ErrorCode = -1
	CodePartNotFound  ErrorCode = -2
	CodeKeyNotFound   ErrorCode = -3
	CodeConsensus     ErrorCode = -4
	CodeUnknown       ErrorCode = -100
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSucceeded:
		return "SUCCEEDED"
	case CodeLeaderChanged:
		return "LEADER_CHANGED"
	case CodePartNotFound:
		return "PART_NOT_FOUND"
	case CodeKeyNotFound:
		return "KEY_NOT_FOUND"
	case CodeConsensus:
		return "CONSENSUS_ERROR"
	default:
		return fmt.Sprintf("E_%d", int32(c))
	}
}

// ScanRequest asks one host for the next bounded chunk of one partition.
// The per-scan template carries everything except PartID and Cursor, which
// are substituted per partition per round.
type ScanRequest struct {
	Space         string     `json:"space"`
	Label         string     `json:"label"`
	Kind          EntityKind `json:"kind"`
	PartID        int32      `json:"part_id"`
	Cursor        []byte     `json:"cursor,omitempty"`
	ReturnColumns []string   `json:"return_columns,omitempty"`
	Filter        string     `json:"filter,omitempty"`
	Limit         int64      `json:"limit,omitempty"`
}

// Clone returns a shallow copy of the template specialized for one partition.
func (r *ScanRequest) Clone(partID int32, cursor []byte) *ScanRequest {
	cp := *r
	cp.PartID = partID
	cp.Cursor = cursor
	return &cp
}

// PartitionError is one entry of a host's failed-partition report.
// Leader carries the fresh leader hint on LEADER_CHANGED, when known.
type PartitionError struct {
	PartID int32     `json:"part_id"`
	Code   ErrorCode `json:"code"`
	Leader *HostAddr `json:"leader,omitempty"`
}

// ResponseResult groups the per-partition failures of a scan response.
type ResponseResult struct {
	FailedParts []PartitionError `json:"failed_parts"`
}

// ScanResponse is one host's answer for one partition chunk.
type ScanResponse struct {
	HasNext    bool            `json:"has_next"`
	NextCursor []byte          `json:"next_cursor,omitempty"`
	Data       *DataSet        `json:"data,omitempty"`
	Result     *ResponseResult `json:"result,omitempty"`
}

// Succeeded reports whether the response carries no partition failures.
func (r *ScanResponse) Succeeded() bool {
	return r != nil && r.Result != nil && len(r.Result.FailedParts) == 0
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueBytes
)

// Value is a single cell of a scanned row. The core never inspects cells;
// record processors and export sinks do.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func NullValue() Value           { return Value{Kind: ValueNull} }
func BoolValue(b bool) Value     { return Value{Kind: ValueBool, Bool: b} }
func IntValue(i int64) Value     { return Value{Kind: ValueInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func BytesValue(b []byte) Value  { return Value{Kind: ValueBytes, Bytes: b} }

// Any returns the cell as a plain Go value, for JSON-style output.
func (v Value) Any() any {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueString:
		return v.Str
	case ValueBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	default:
		return nil
	}
}

// AsString renders the cell for display and flat export columns.
func (v Value) AsString() string {
	switch v.Kind {
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case ValueFloat:
		return fmt.Sprintf("%g", v.Float)
	case ValueString:
		return v.Str
	case ValueBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	default:
		return ""
	}
}

type valueJSON struct {
	Kind  string   `json:"kind"`
	Bool  *bool    `json:"bool,omitempty"`
	Int   *int64   `json:"int,omitempty"`
	Float *float64 `json:"float,omitempty"`
	Str   *string  `json:"str,omitempty"`
	Bytes []byte   `json:"bytes,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{}
	switch v.Kind {
	case ValueNull:
		out.Kind = "null"
	case ValueBool:
		out.Kind = "bool"
		out.Bool = &v.Bool
	case ValueInt:
		out.Kind = "int"
		out.Int = &v.Int
	case ValueFloat:
		out.Kind = "float"
		out.Float = &v.Float
	case ValueString:
		out.Kind = "str"
		out.Str = &v.Str
	case ValueBytes:
		out.Kind = "bytes"
		out.Bytes = v.Bytes
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "null", "":
		*v = NullValue()
	case "bool":
		if in.Bool == nil {
			return fmt.Errorf("bool value missing payload")
		}
		*v = BoolValue(*in.Bool)
	case "int":
		if in.Int == nil {
			return fmt.Errorf("int value missing payload")
		}
		*v = IntValue(*in.Int)
	case "float":
		if in.Float == nil {
			return fmt.Errorf("float value missing payload")
		}
		*v = FloatValue(*in.Float)
	case "str":
		if in.Str == nil {
			return fmt.Errorf("str value missing payload")
		}
		*v = StringValue(*in.Str)
	case "bytes":
		*v = BytesValue(in.Bytes)
	default:
		return fmt.Errorf("unknown value kind %q", in.Kind)
	}
	return nil
}

// Row is one scanned record in wire form.
type Row struct {
	Values []Value `json:"values"`
}

// DataSet is the raw payload a host returns for one partition chunk.
type DataSet struct {
	ColumnNames []string `json:"column_names"`
	Rows        []Row    `json:"rows"`
}

// RowCount is nil-safe.
func (d *DataSet) RowCount() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}
