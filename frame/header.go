// Package frame implements the DIPC wire framing format: a fixed 32-byte
// header, little-endian on the wire regardless of host byte order, followed
// immediately by a body of header.BodyLen bytes. It also implements a
// streaming decoder tolerant of partial and coalesced reads (see decoder.go).
//
// Frame format:
//
//	0      4  6  8           12 13 14       16          24        28          32
//	┌──────┬──┬──┬────────────┬──┬──┬────────┬───────────┬─────────┬───────────┬───────────────┐
//	│magic │ve│hl│  body_len  │mt│cd│ flags  │ request_id│ reserved│ header_crc│    body ...    │
//	│ u32  │u16│u16│   u32    │u8│u8│  u16   │    u64    │   u32   │    u32    │ body_len bytes │
//	└──────┴──┴──┴────────────┴──┴──┴────────┴───────────┴─────────┴───────────┴───────────────┘
package frame

import (
	"encoding/binary"
	"fmt"
)

// MsgType distinguishes request, response, and event frames.
type MsgType uint8

const (
	MsgRequest  MsgType = 1
	MsgResponse MsgType = 2
	MsgEvent    MsgType = 3
)

// Codec identifies the body serialization. Only CodecJSON is accepted at
// this wire version.
type Codec uint8

const (
	CodecJSON Codec = 1
)

const (
	// Magic is the constant 4-byte frame identifier, "DIPC" written on the
	// wire as bytes 44 49 50 43 (i.e. 0x43504944 read little-endian).
	Magic uint32 = 0x43504944

	// Version is the fixed wire version for this revision of the protocol.
	Version uint16 = 0x0001

	// HeaderLen is the constant, fixed size of the header in bytes.
	HeaderLen uint16 = 32

	// MaxBodyLen is the largest body this version accepts.
	MaxBodyLen uint32 = 8 * 1024 * 1024
)

// Header is the fixed 32-byte frame header.
type Header struct {
	Magic        uint32
	Version      uint16
	HeaderLenVal uint16
	BodyLen      uint32
	MsgType      MsgType
	Codec        Codec
	Flags        uint16
	RequestID    uint64
	Reserved     uint32
	HeaderCRC32  uint32
}

// NewHeader builds a header with all constant fields already set, ready to
// be handed to Encode.
func NewHeader(msgType MsgType, requestID uint64) Header {
	return Header{
		Magic:        Magic,
		Version:      Version,
		HeaderLenVal: HeaderLen,
		MsgType:      msgType,
		Codec:        CodecJSON,
		RequestID:    requestID,
	}
}

// Encode writes the 32-byte header followed by body to a freshly allocated
// byte slice. BodyLen is always recomputed from len(body), overriding
// whatever the caller put in h.BodyLen, so header and body can never
// disagree about length.
func Encode(h Header, body []byte) []byte {
	out := make([]byte, int(HeaderLen)+len(body))

	binary.LittleEndian.PutUint32(out[0:4], h.Magic)
	binary.LittleEndian.PutUint16(out[4:6], h.Version)
	binary.LittleEndian.PutUint16(out[6:8], h.HeaderLenVal)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(body)))
	out[12] = byte(h.MsgType)
	out[13] = byte(h.Codec)
	binary.LittleEndian.PutUint16(out[14:16], h.Flags)
	binary.LittleEndian.PutUint64(out[16:24], h.RequestID)
	binary.LittleEndian.PutUint32(out[24:28], h.Reserved)
	binary.LittleEndian.PutUint32(out[28:32], h.HeaderCRC32)

	copy(out[HeaderLen:], body)
	return out
}

// DecodeHeader reads only the 32-byte header from b. It requires
// len(b) >= 32, never allocates or inspects a body, and performs no
// semantic validation (use Validate for that).
func DecodeHeader(b []byte) (Header, bool) {
	if len(b) < int(HeaderLen) {
		return Header{}, false
	}
	return Header{
		Magic:        binary.LittleEndian.Uint32(b[0:4]),
		Version:      binary.LittleEndian.Uint16(b[4:6]),
		HeaderLenVal: binary.LittleEndian.Uint16(b[6:8]),
		BodyLen:      binary.LittleEndian.Uint32(b[8:12]),
		MsgType:      MsgType(b[12]),
		Codec:        Codec(b[13]),
		Flags:        binary.LittleEndian.Uint16(b[14:16]),
		RequestID:    binary.LittleEndian.Uint64(b[16:24]),
		Reserved:     binary.LittleEndian.Uint32(b[24:28]),
		HeaderCRC32:  binary.LittleEndian.Uint32(b[28:32]),
	}, true
}

// Validate checks every structural invariant in the wire format. The set of
// error strings it can return is stable, for testing.
func Validate(h Header) error {
	if h.Magic != Magic {
		return fmt.Errorf("bad magic")
	}
	if h.Version != Version {
		return fmt.Errorf("unsupported version")
	}
	if h.HeaderLenVal != HeaderLen {
		return fmt.Errorf("bad header_len")
	}
	if h.BodyLen > MaxBodyLen {
		return fmt.Errorf("body_len too large")
	}
	if h.MsgType != MsgRequest && h.MsgType != MsgResponse && h.MsgType != MsgEvent {
		return fmt.Errorf("bad msg_type")
	}
	if h.Codec != CodecJSON {
		return fmt.Errorf("unsupported codec")
	}
	if h.Flags != 0 {
		return fmt.Errorf("flags must be 0")
	}
	if h.Reserved != 0 {
		return fmt.Errorf("reserved must be 0")
	}
	if h.HeaderCRC32 != 0 {
		return fmt.Errorf("header_crc32 must be 0")
	}
	if h.MsgType == MsgEvent {
		if h.RequestID != 0 {
			return fmt.Errorf("event request_id must be zero")
		}
	} else if h.RequestID == 0 {
		return fmt.Errorf("request_id must be non-zero")
	}
	return nil
}
