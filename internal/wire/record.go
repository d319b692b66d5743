// Package wire implements the record codec and length-delimited frame
// format shared by the harp client agent and server.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"
	"unicode/utf8"
)

// maxStringField is the largest a single length-prefixed string field
// (addr, kind, detail, created) may be on the wire; the length prefix is
// an unsigned 16-bit integer.
const maxStringField = 65535

// timeLayout matches the original harp wire format:
// "2023-02-24 13:01:12.558038011 +00:00:00".
const timeLayout = "2006-01-02 15:04:05.000000000 -07:00:00"

// Record is the unit transported and stored by the pipeline.
type Record struct {
	ID      uint32
	Addr    netip.Addr
	Kind    string
	Detail  json.RawMessage // nil means absent
	Created time.Time
}

// EncodeError is returned by Encode when a record cannot be serialized.
type EncodeError struct {
	Field string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wire: encode %s: %v", e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned by Decode when a frame cannot be parsed into a
// Record. Decoding never panics; callers skip the frame and keep reading.
type DecodeError struct {
	Kind string // short description of what failed, e.g. "short_read"
	From string // the raw field value, when available
	To   string // the target type being parsed into
	Err  error
}

func (e *DecodeError) Error() string {
	if e.From != "" {
		return fmt.Sprintf("wire: decode %s: %q -> %s: %v", e.Kind, e.From, e.To, e.Err)
	}
	return fmt.Sprintf("wire: decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes a Record into its wire payload (the frame body, not
// including the 2-byte length prefix — see FrameWriter for that).
func Encode(r Record) ([]byte, error) {
	addrText := r.Addr.String()
	if len(addrText) > maxStringField {
		return nil, &EncodeError{Field: "addr", Err: fmt.Errorf("exceeds %d bytes", maxStringField)}
	}
	if r.Kind == "" {
		return nil, &EncodeError{Field: "kind", Err: fmt.Errorf("must not be empty")}
	}
	if len(r.Kind) > maxStringField {
		return nil, &EncodeError{Field: "kind", Err: fmt.Errorf("exceeds %d bytes", maxStringField)}
	}

	var detailText string
	if r.Detail != nil {
		if !json.Valid(r.Detail) {
			return nil, &EncodeError{Field: "detail", Err: fmt.Errorf("invalid JSON")}
		}
		detailText = string(r.Detail)
	}
	if len(detailText) > maxStringField {
		return nil, &EncodeError{Field: "detail", Err: fmt.Errorf("exceeds %d bytes", maxStringField)}
	}

	createdText := r.Created.UTC().Format(timeLayout)
	if len(createdText) > maxStringField {
		return nil, &EncodeError{Field: "created", Err: fmt.Errorf("exceeds %d bytes", maxStringField)}
	}

	buf := bytes.NewBuffer(make([]byte, 0, 4+2+len(addrText)+2+len(r.Kind)+2+len(detailText)+2+len(createdText)))

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], r.ID)
	buf.Write(u32[:])

	writeString(buf, addrText)
	writeString(buf, r.Kind)
	writeString(buf, detailText)
	writeString(buf, createdText)

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(s)))
	buf.Write(u16[:])
	buf.WriteString(s)
}

// Decode parses a wire payload into a Record. It never panics; any
// malformation is reported as a *DecodeError.
func Decode(payload []byte) (Record, error) {
	var r Record

	if len(payload) < 4 {
		return r, &DecodeError{Kind: "short_read", To: "id", Err: fmt.Errorf("need 4 bytes, have %d", len(payload))}
	}
	r.ID = binary.BigEndian.Uint32(payload[:4])
	rest := payload[4:]

	addrText, rest, err := readString(rest, "addr")
	if err != nil {
		return Record{}, err
	}
	addr, err := netip.ParseAddr(addrText)
	if err != nil {
		return Record{}, &DecodeError{Kind: "bad_identifier", From: addrText, To: "netip.Addr", Err: err}
	}
	r.Addr = addr

	kind, rest, err := readString(rest, "kind")
	if err != nil {
		return Record{}, err
	}
	if kind == "" {
		return Record{}, &DecodeError{Kind: "empty_kind", To: "string", Err: fmt.Errorf("kind must not be empty")}
	}
	r.Kind = kind

	detailText, rest, err := readString(rest, "detail")
	if err != nil {
		return Record{}, err
	}
	if detailText != "" {
		if !json.Valid([]byte(detailText)) {
			return Record{}, &DecodeError{Kind: "bad_json", From: detailText, To: "json.RawMessage", Err: fmt.Errorf("invalid JSON")}
		}
		r.Detail = json.RawMessage(detailText)
	}

	createdText, _, err := readString(rest, "created")
	if err != nil {
		return Record{}, err
	}
	created, err := time.Parse(timeLayout, createdText)
	if err != nil {
		return Record{}, &DecodeError{Kind: "bad_timestamp", From: createdText, To: "time.Time", Err: err}
	}
	r.Created = created

	return r, nil
}

func readString(b []byte, field string) (value string, rest []byte, err error) {
	if len(b) < 2 {
		return "", nil, &DecodeError{Kind: "short_read", To: field, Err: fmt.Errorf("need 2-byte length prefix, have %d", len(b))}
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < n {
		return "", nil, &DecodeError{Kind: "short_read", To: field, Err: fmt.Errorf("need %d bytes, have %d", n, len(b))}
	}
	raw := b[:n]
	if !utf8.Valid(raw) {
		return "", nil, &DecodeError{Kind: "invalid_utf8", To: field, Err: fmt.Errorf("not valid UTF-8")}
	}
	return string(raw), b[n:], nil
}
