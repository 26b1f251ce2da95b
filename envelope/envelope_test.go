package envelope

import (
	"encoding/json"
	"testing"

	"dipc/rpcerr"
)

func TestNewRequestBodyDefaultsNilParams(t *testing.T) {
	rb, err := NewRequestBody("ping", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rb.Method != "ping" {
		t.Fatalf("method = %q", rb.Method)
	}
	if string(rb.Params) != "{}" {
		t.Fatalf("params = %s, want {}", rb.Params)
	}
}

func TestParseRequestBodyMissingParams(t *testing.T) {
	rb, err := ParseRequestBody([]byte(`{"method":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rb.Params) != "{}" {
		t.Fatalf("params = %s, want {}", rb.Params)
	}
}

func TestParseRequestBodyNullParams(t *testing.T) {
	rb, err := ParseRequestBody([]byte(`{"method":"ping","params":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rb.Params) != "{}" {
		t.Fatalf("params = %s, want {}", rb.Params)
	}
}

func TestParseRequestBodyMissingMethod(t *testing.T) {
	_, err := ParseRequestBody([]byte(`{"params":{}}`))
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.InvalidRequest {
		t.Fatalf("got %v, want InvalidRequest", err)
	}
}

func TestParseRequestBodyUnparsable(t *testing.T) {
	_, err := ParseRequestBody([]byte(`not json`))
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.ParseError {
		t.Fatalf("got %v, want ParseError", err)
	}
}

func TestRequestBodyIgnoresUnknownFields(t *testing.T) {
	rb, err := ParseRequestBody([]byte(`{"method":"ping","params":{},"extra":"ignored"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rb.Method != "ping" {
		t.Fatalf("method = %q", rb.Method)
	}
}

func TestResponseRoundTripOK(t *testing.T) {
	data, _ := json.Marshal(map[string]int{"sum": 3})
	body, err := NewResponseBody(rpcerr.Ok(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := ParseResponseBody(body)
	if !result.OK {
		t.Fatalf("expected OK result")
	}
	var payload struct{ Sum int }
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Sum != 3 {
		t.Fatalf("sum = %d, want 3", payload.Sum)
	}
}

func TestResponseRoundTripError(t *testing.T) {
	body, err := NewResponseBody(rpcerr.Err(rpcerr.MethodNotFound, "method_not_found"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := ParseResponseBody(body)
	if result.OK {
		t.Fatalf("expected failed result")
	}
	if result.Err.Code != rpcerr.MethodNotFound {
		t.Fatalf("code = %d, want %d", result.Err.Code, rpcerr.MethodNotFound)
	}
}

func TestParseResponseBodyMissingOK(t *testing.T) {
	result := ParseResponseBody([]byte(`{"data":{}}`))
	if result.OK || result.Err.Code != rpcerr.InvalidRequest {
		t.Fatalf("got %+v, want InvalidRequest", result)
	}
}

func TestParseResponseBodyMissingErrorFields(t *testing.T) {
	result := ParseResponseBody([]byte(`{"ok":false,"error":{}}`))
	if result.OK {
		t.Fatalf("expected failed result")
	}
	if result.Err.Code != rpcerr.InternalError || result.Err.Message != "error" {
		t.Fatalf("got %+v, want InternalError/\"error\" fallback", result.Err)
	}
}

func TestParseResponseBodyUnparsable(t *testing.T) {
	result := ParseResponseBody([]byte(`not json`))
	if result.OK || result.Err.Code != rpcerr.ParseError {
		t.Fatalf("got %+v, want ParseError", result)
	}
}

func TestParseResponseBodyMissingDataDefaultsEmptyObject(t *testing.T) {
	result := ParseResponseBody([]byte(`{"ok":true}`))
	if !result.OK || string(result.Data) != "{}" {
		t.Fatalf("got %+v, want OK with empty object data", result)
	}
}
