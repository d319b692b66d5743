// Package harp is the client-side transport agent for the action-logging
// pipeline: a reconnecting TCP connector, a reserve queue for bounced
// records, and drip-feed retry pacing.
package harp

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"harp/internal/wire"
)

// Kind names the class of an Action, e.g. "player_join". Application code
// implements this over its own enum or string type; harp only calls Key.
type Kind interface {
	Key() string
}

// StringKind adapts a bare string to Kind for producers that don't need a
// richer enum.
type StringKind string

// Key implements Kind.
func (k StringKind) Key() string { return string(k) }

// HarpID identifies the subject of an Action: its origin address and an
// opaque entity identifier supplied by the producer.
type HarpID struct {
	Addr netip.Addr
	ID   uint32
}

// Loggable is implemented by application types that can describe themselves
// as a HarpID, e.g. a connected player or an in-flight request.
type Loggable interface {
	Identifier() HarpID
}

// Action is one structured event record, as produced by the host
// application before it crosses the wire.
type Action struct {
	ID      uint32
	Addr    netip.Addr
	Kind    string
	Detail  json.RawMessage
	Created time.Time
}

// New creates an Action with no detail, timestamped now.
func New(id HarpID, kind Kind) Action {
	return Action{
		ID:      id.ID,
		Addr:    id.Addr,
		Kind:    kind.Key(),
		Created: time.Now().UTC(),
	}
}

// WithDetail creates an Action carrying a JSON-serializable detail value.
// It returns an error if detail cannot be marshaled to JSON.
func WithDetail(id HarpID, kind Kind, detail any) (Action, error) {
	a := New(id, kind)
	raw, err := json.Marshal(detail)
	if err != nil {
		return Action{}, fmt.Errorf("harp: marshal detail: %w", err)
	}
	a.Detail = raw
	return a, nil
}

func (a Action) toRecord() wire.Record {
	return wire.Record{
		ID:      a.ID,
		Addr:    a.Addr,
		Kind:    a.Kind,
		Detail:  a.Detail,
		Created: a.Created,
	}
}
