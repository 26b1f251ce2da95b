package frame

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeader(MsgRequest, 12345)
	body := []byte(`{"method":"ping","params":{}}`)

	wire := Encode(h, body)

	got, ok := DecodeHeader(wire)
	if !ok {
		t.Fatalf("DecodeHeader failed on valid wire data")
	}
	if got.Magic != Magic || got.Version != Version || got.HeaderLenVal != HeaderLen {
		t.Fatalf("constant fields not preserved: %+v", got)
	}
	if got.BodyLen != uint32(len(body)) {
		t.Fatalf("BodyLen = %d, want %d", got.BodyLen, len(body))
	}
	if got.RequestID != 12345 || got.MsgType != MsgRequest {
		t.Fatalf("variable fields not preserved: %+v", got)
	}

	if !bytes.Equal(wire[HeaderLen:], body) {
		t.Fatalf("body not preserved")
	}
}

func TestEncodeOverridesBodyLen(t *testing.T) {
	h := NewHeader(MsgRequest, 1)
	h.BodyLen = 999 // caller lied; Encode must ignore this
	body := []byte("abc")

	wire := Encode(h, body)
	got, _ := DecodeHeader(wire)
	if got.BodyLen != 3 {
		t.Fatalf("BodyLen = %d, want 3 (computed, not caller-supplied)", got.BodyLen)
	}
}

func TestBodyLenZeroRoundTrips(t *testing.T) {
	h := NewHeader(MsgRequest, 1)
	wire := Encode(h, nil)
	got, ok := DecodeHeader(wire)
	if !ok || got.BodyLen != 0 {
		t.Fatalf("expected body_len 0 to round-trip, got %+v ok=%v", got, ok)
	}
	if err := Validate(got); err != nil {
		t.Fatalf("body_len 0 should validate, got %v", err)
	}
}

func TestValidateBodyLenBoundary(t *testing.T) {
	h := NewHeader(MsgRequest, 1)
	h.BodyLen = MaxBodyLen
	if err := Validate(h); err != nil {
		t.Fatalf("body_len == MaxBodyLen should be accepted, got %v", err)
	}

	h.BodyLen = MaxBodyLen + 1
	if err := Validate(h); err == nil || err.Error() != "body_len too large" {
		t.Fatalf("expected 'body_len too large', got %v", err)
	}
}

func TestValidateReasons(t *testing.T) {
	base := func() Header { return NewHeader(MsgRequest, 1) }

	cases := []struct {
		name   string
		modify func(Header) Header
		want   string
	}{
		{"bad magic", func(h Header) Header { h.Magic ^= 1; return h }, "bad magic"},
		{"bad version", func(h Header) Header { h.Version = 2; return h }, "unsupported version"},
		{"bad header_len", func(h Header) Header { h.HeaderLenVal = 16; return h }, "bad header_len"},
		{"bad msg_type", func(h Header) Header { h.MsgType = 9; return h }, "bad msg_type"},
		{"bad codec", func(h Header) Header { h.Codec = 2; return h }, "unsupported codec"},
		{"nonzero flags", func(h Header) Header { h.Flags = 1; return h }, "flags must be 0"},
		{"nonzero reserved", func(h Header) Header { h.Reserved = 1; return h }, "reserved must be 0"},
		{"nonzero crc", func(h Header) Header { h.HeaderCRC32 = 1; return h }, "header_crc32 must be 0"},
		{"zero request_id on request", func(h Header) Header { h.RequestID = 0; return h }, "request_id must be non-zero"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := tc.modify(base())
			err := Validate(h)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("got %v, want %q", err, tc.want)
			}
		})
	}
}

func TestValidateEventRequestID(t *testing.T) {
	h := NewHeader(MsgEvent, 0)
	if err := Validate(h); err != nil {
		t.Fatalf("zero request_id on event should validate, got %v", err)
	}

	h.RequestID = 7
	if err := Validate(h); err == nil || err.Error() != "event request_id must be zero" {
		t.Fatalf("got %v, want event request_id error", err)
	}
}

func TestDecodeHeaderRequiresFullLength(t *testing.T) {
	h := NewHeader(MsgRequest, 1)
	wire := Encode(h, []byte("x"))

	if _, ok := DecodeHeader(wire[:31]); ok {
		t.Fatalf("DecodeHeader should refuse fewer than 32 bytes")
	}
}
