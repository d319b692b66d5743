package wire

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T) Record {
	t.Helper()
	return Record{
		ID:      42,
		Addr:    netip.MustParseAddr("127.0.0.1"),
		Kind:    "player_join",
		Detail:  []byte(`{"reason":"lost connection"}`),
		Created: time.Date(2023, 2, 24, 13, 1, 12, 558038011, time.UTC),
	}
}

func TestRoundTripWithDetail(t *testing.T) {
	r := sampleRecord(t)

	payload, err := Encode(r)
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)

	require.Equal(t, r.ID, got.ID)
	require.Equal(t, r.Addr, got.Addr)
	require.Equal(t, r.Kind, got.Kind)
	require.JSONEq(t, string(r.Detail), string(got.Detail))
	require.True(t, r.Created.Equal(got.Created))
}

func TestRoundTripNoDetail(t *testing.T) {
	r := sampleRecord(t)
	r.Detail = nil

	payload, err := Encode(r)
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	require.Nil(t, got.Detail)
}

func TestRoundTripIPv6(t *testing.T) {
	r := sampleRecord(t)
	r.Addr = netip.MustParseAddr("2001:db8::1")

	payload, err := Encode(r)
	require.NoError(t, err)

	got, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, r.Addr, got.Addr)
}

func TestEncodeEmptyKindFails(t *testing.T) {
	r := sampleRecord(t)
	r.Kind = ""

	_, err := Encode(r)
	require.Error(t, err)

	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, "kind", encErr.Field)
}

func TestEncodeInvalidDetailJSONFails(t *testing.T) {
	r := sampleRecord(t)
	r.Detail = []byte(`not json`)

	_, err := Encode(r)
	require.Error(t, err)
}

func TestDecodeShortReadFails(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0})

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "short_read", decErr.Kind)
}

func TestDecodeAddrShortReadFails(t *testing.T) {
	r := sampleRecord(t)
	payload, err := Encode(r)
	require.NoError(t, err)

	// Corrupt the addr field's length prefix to claim more bytes than
	// follow, forcing a short read on the addr field specifically.
	corrupted := make([]byte, len(payload))
	copy(corrupted, payload)
	corrupted[4] = 0xff
	corrupted[5] = 0xff

	_, err = Decode(corrupted)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "short_read", decErr.Kind)
}

func TestDecodeEmptyKindFails(t *testing.T) {
	r := sampleRecord(t)
	r.Kind = "x"
	payload, err := Encode(r)
	require.NoError(t, err)

	// Re-encode manually with an empty kind string to bypass Encode's own
	// validation and exercise Decode's check directly.
	buf := make([]byte, 0, len(payload))
	buf = append(buf, payload[:4]...) // id

	addrLen := int(payload[4])<<8 | int(payload[5])
	addrEnd := 6 + addrLen
	buf = append(buf, payload[4:addrEnd]...) // addr field unchanged

	buf = append(buf, 0, 0) // kind length = 0

	rest := payload[addrEnd:]
	kindLen := int(rest[0])<<8 | int(rest[1])
	afterKind := rest[2+kindLen:]
	buf = append(buf, afterKind...)

	_, err = Decode(buf)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "empty_kind", decErr.Kind)
}
