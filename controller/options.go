package controller

import (
	"io"
	"log/slog"
)

// defaultMaxFlows matches the datapath's default flow table size.
const defaultMaxFlows = 10000

// Options configures a Controller.
//
// Use DefaultOptions() and override what you need.
type Options struct {
	// MaxFlows is the flow table capacity.
	// Default: 10000
	MaxFlows int

	// Codec canonicalizes and describes flow matches.
	// Default: RawCodec
	Codec MatchCodec

	// Installer programs the datapath.
	// Default: NopInstaller
	Installer Installer

	// Logger receives debug records for installs, removals and evictions.
	// Default: discards everything
	Logger *slog.Logger
}

// DefaultOptions returns options for a standalone controller that installs nothing.
func DefaultOptions() Options {
	return Options{
		MaxFlows:  defaultMaxFlows,
		Codec:     RawCodec{},
		Installer: NopInstaller{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (o *Options) fillDefaults() {
	def := DefaultOptions()
	if o.MaxFlows == 0 {
		o.MaxFlows = def.MaxFlows
	}
	if o.Codec == nil {
		o.Codec = def.Codec
	}
	if o.Installer == nil {
		o.Installer = def.Installer
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
}
