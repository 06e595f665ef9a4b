package wire

import (
	"encoding/json"
	"testing"
)

func TestScanRequestClone(t *testing.T) {
	tmpl := &ScanRequest{
		Space:         "social",
		Label:         "knows",
		Kind:          KindEdge,
		ReturnColumns: []string{"since"},
		Limit:         100,
	}

	req := tmpl.Clone(7, []byte("cursor"))
	if req.PartID != 7 || string(req.Cursor) != "cursor" {
		t.Fatalf("clone = %+v", req)
	}
	if req.Space != "social" || req.Limit != 100 {
		t.Fatal("clone lost template fields")
	}
	if tmpl.PartID != 0 || tmpl.Cursor != nil {
		t.Fatal("Clone mutated the template")
	}
}

func TestScanResponseSucceeded(t *testing.T) {
	var nilResp *ScanResponse
	if nilResp.Succeeded() {
		t.Fatal("nil response reported success")
	}
	if (&ScanResponse{}).Succeeded() {
		t.Fatal("response without result block reported success")
	}
	if !(&ScanResponse{Result: &ResponseResult{}}).Succeeded() {
		t.Fatal("clean response reported failure")
	}
	failed := &ScanResponse{Result: &ResponseResult{
		FailedParts: []PartitionError{{PartID: 1, Code: CodeLeaderChanged}},
	}}
	if failed.Succeeded() {
		t.Fatal("response with failed parts reported success")
	}
}

func TestValueJSONPreservesKind(t *testing.T) {
	values := []Value{
		NullValue(),
		BoolValue(true),
		IntValue(-42),
		FloatValue(2.5),
		StringValue("hello"),
		BytesValue([]byte{0x01, 0x02}),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal kind %d: %v", v.Kind, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal kind %d: %v", v.Kind, err)
		}
		if back.Kind != v.Kind {
			t.Fatalf("kind %d came back as %d", v.Kind, back.Kind)
		}
		if back.AsString() != v.AsString() {
			t.Fatalf("kind %d payload changed: %q vs %q", v.Kind, back.AsString(), v.AsString())
		}
	}
}

func TestValueUnmarshalRejectsMissingPayload(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"kind":"int"}`), &v); err == nil {
		t.Fatal("int value without payload accepted")
	}
	if err := json.Unmarshal([]byte(`{"kind":"rune"}`), &v); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestErrorCodeString(t *testing.T) {
	if got := CodeLeaderChanged.String(); got != "LEADER_CHANGED" {
		t.Fatalf("CodeLeaderChanged.String() = %q", got)
	}
	if got := ErrorCode(-77).String(); got != "E_-77" {
		t.Fatalf("unknown code String() = %q", got)
	}
}
