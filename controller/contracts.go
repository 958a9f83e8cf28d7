package controller

import (
	"context"
	"encoding/hex"

	"github.com/joshuapare/flowkit/flowid"
	"github.com/joshuapare/flowkit/flowtable"
)

// MatchCodec owns the meaning of flow-match bytes. The controller treats
// matches as opaque and only asks the codec for a canonical form (so two
// encodings of the same match deduplicate) and a human-readable rendering.
type MatchCodec interface {
	// Canonical returns the normalized encoding of match, or an error if
	// match is malformed. The result may alias match.
	Canonical(match []byte) ([]byte, error)

	// Describe renders match for logs.
	Describe(match []byte) string
}

// Installer materializes flows in the packet-forwarding substrate.
// It is the only component that interprets linked ids.
type Installer interface {
	// Install programs the forwarding rule for entry. linked is the id of the
	// paired flow, or flowid.NullID.
	Install(ctx context.Context, entry *flowtable.Entry, linked flowid.FlowID) error

	// Remove deletes the forwarding rule for entry.
	Remove(ctx context.Context, entry *flowtable.Entry) error
}

// RawCodec treats match bytes as already canonical.
type RawCodec struct{}

func (RawCodec) Canonical(match []byte) ([]byte, error) { return match, nil }

func (RawCodec) Describe(match []byte) string { return hex.EncodeToString(match) }

// NopInstaller accepts every request and does nothing.
type NopInstaller struct{}

func (NopInstaller) Install(context.Context, *flowtable.Entry, flowid.FlowID) error { return nil }

func (NopInstaller) Remove(context.Context, *flowtable.Entry) error { return nil }
