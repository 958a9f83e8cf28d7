// Package controller drives a flow table the way a datapath controller does.
// Matches go through a MatchCodec before they are stored, stored flows are
// programmed through an Installer, and a full table gives up its least
// recently touched flow.
//
// A Controller is not safe for concurrent use; like the table it wraps, give
// each worker its own.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/flowkit/flowid"
	"github.com/joshuapare/flowkit/flowtable"
)

// Controller owns one flow table and its datapath state.
type Controller struct {
	table     *flowtable.Table
	codec     MatchCodec
	installer Installer
	log       *slog.Logger

	// byMatch maps canonical match bytes to the id of the live flow.
	byMatch map[string]flowid.FlowID

	// clock feeds entry sequences; every Add and Touch takes the next tick.
	clock int64
	stats Stats
}

// New builds a Controller. Zero fields in opts take their DefaultOptions value.
func New(opts Options) (*Controller, error) {
	opts.fillDefaults()

	t, err := flowtable.New(opts.MaxFlows)
	if err != nil {
		return nil, err
	}
	return &Controller{
		table:     t,
		codec:     opts.Codec,
		installer: opts.Installer,
		log:       opts.Logger,
		byMatch:   make(map[string]flowid.FlowID, opts.MaxFlows),
	}, nil
}

func (c *Controller) tick() int64 {
	c.clock++
	return c.clock
}

func (c *Controller) describe(ctx context.Context, match []byte) string {
	if !c.log.Enabled(ctx, slog.LevelDebug) {
		return ""
	}
	return c.codec.Describe(match)
}

// Add installs a flow for match and returns its id. A match already live
// returns the existing id. When the table is full the least recently touched
// flow is evicted first.
func (c *Controller) Add(ctx context.Context, match []byte) (flowid.FlowID, error) {
	return c.AddLinked(ctx, match, flowid.NullID)
}

// AddLinked is Add for a flow paired with partner, for example the return
// direction of a connection. When partner is live both entries are linked to
// each other and the installer sees the link; removing either flow removes
// the other. A partner already paired with another flow is unpaired from it
// first. If match is already live its existing id is returned and partner
// is ignored.
func (c *Controller) AddLinked(ctx context.Context, match []byte, partner flowid.FlowID) (flowid.FlowID, error) {
	canon, err := c.codec.Canonical(match)
	if err != nil {
		return flowid.NullID, fmt.Errorf("canonicalize match: %w", err)
	}

	if id, ok := c.byMatch[string(canon)]; ok && c.table.Exists(id) {
		c.stats.Duplicates++
		return id, nil
	}

	id, err := c.table.Put(canon)
	if errors.Is(err, flowtable.ErrTableFull) {
		if _, evictErr := c.Evict(ctx); evictErr != nil {
			// The victim may be gone even though its linked flow is not.
			if c.table.Occupied() == c.table.MaxFlows() {
				return flowid.NullID, fmt.Errorf("make room: %w", evictErr)
			}
			c.log.WarnContext(ctx, "eviction left a linked flow installed", "err", evictErr)
		}
		id, err = c.table.Put(canon)
	}
	if err != nil {
		return flowid.NullID, err
	}

	e, err := c.table.Get(id)
	if err != nil {
		return flowid.NullID, err
	}
	e.SetSequence(c.tick())

	// The eviction above may have taken the partner with it.
	var p, prev *flowtable.Entry
	prevLink := flowid.NullID
	if partner != flowid.NullID {
		if p, err = c.table.Get(partner); err == nil {
			prevLink = p.LinkedID()
			if prev, err = c.table.Get(prevLink); err != nil || prev.LinkedID() != partner {
				prev = nil
			}
			if prev != nil {
				prev.SetLinkedID(flowid.NullID)
			}
			p.SetLinkedID(id)
			e.SetLinkedID(partner)
		} else {
			c.log.DebugContext(ctx, "partner flow gone, adding unlinked",
				"id", id, "partner", partner, "err", err)
			p = nil
		}
	}

	if err := c.installer.Install(ctx, e, e.LinkedID()); err != nil {
		if p != nil {
			p.SetLinkedID(prevLink)
		}
		if prev != nil {
			prev.SetLinkedID(partner)
		}
		if clearErr := c.table.Clear(id); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		c.stats.InstallFailures++
		return flowid.NullID, fmt.Errorf("install %v: %w", id, err)
	}

	c.byMatch[string(canon)] = id
	c.stats.Adds++
	c.log.DebugContext(ctx, "flow installed",
		"id", id, "linked", e.LinkedID(), "match", c.describe(ctx, canon))
	return id, nil
}

// Get returns the live entry for id without touching it.
func (c *Controller) Get(id flowid.FlowID) (*flowtable.Entry, error) {
	return c.table.Get(id)
}

// Exists reports whether id names a live flow.
func (c *Controller) Exists(id flowid.FlowID) bool {
	return c.table.Exists(id)
}

// Lookup returns the id of the live flow for match.
func (c *Controller) Lookup(match []byte) (flowid.FlowID, bool) {
	canon, err := c.codec.Canonical(match)
	if err != nil {
		return flowid.NullID, false
	}
	id, ok := c.byMatch[string(canon)]
	if !ok || !c.table.Exists(id) {
		return flowid.NullID, false
	}
	return id, true
}

// Touch marks id as the most recently used flow.
func (c *Controller) Touch(id flowid.FlowID) error {
	e, err := c.table.Get(id)
	if err != nil {
		return err
	}
	e.SetSequence(c.tick())
	return nil
}

// Remove uninstalls and clears id, then removes its linked flow if that is
// still live and linked back to id. If the installer fails the flow stays in
// the table.
func (c *Controller) Remove(ctx context.Context, id flowid.FlowID) error {
	linked, err := c.removeOne(ctx, id)
	if err != nil {
		return err
	}
	return c.removeLinked(ctx, id, linked)
}

// removeOne uninstalls and clears a single flow and returns its linked id.
func (c *Controller) removeOne(ctx context.Context, id flowid.FlowID) (flowid.FlowID, error) {
	e, err := c.table.Get(id)
	if err != nil {
		return flowid.NullID, err
	}
	if err := c.installer.Remove(ctx, e); err != nil {
		return flowid.NullID, fmt.Errorf("uninstall %v: %w", id, err)
	}

	linked := e.LinkedID()
	key := string(e.Match())
	if c.byMatch[key] == id {
		delete(c.byMatch, key)
	}
	if err := c.table.Clear(id); err != nil {
		return flowid.NullID, err
	}
	c.stats.Removals++
	c.log.DebugContext(ctx, "flow removed", "id", id, "linked", linked)
	return linked, nil
}

// removeLinked removes linked if it is live and still paired with id.
func (c *Controller) removeLinked(ctx context.Context, id, linked flowid.FlowID) error {
	if linked == flowid.NullID {
		return nil
	}
	e, err := c.table.Get(linked)
	if err != nil || e.LinkedID() != id {
		return nil
	}
	return c.Remove(ctx, linked)
}

// Evict removes the least recently touched flow and returns its id, or
// flowid.NullID when the table is empty. The eviction counts once the victim
// is cleared; a failure to remove its linked flow is still returned along
// with the victim's id.
func (c *Controller) Evict(ctx context.Context) (flowid.FlowID, error) {
	victim := c.table.CandidateForEviction()
	if victim == flowid.NullID {
		return flowid.NullID, nil
	}
	linked, err := c.removeOne(ctx, victim)
	if err != nil {
		return flowid.NullID, fmt.Errorf("evict %v: %w", victim, err)
	}
	c.stats.Evictions++
	c.log.DebugContext(ctx, "flow evicted", "id", victim, "occupied", c.table.Occupied())

	if err := c.removeLinked(ctx, victim, linked); err != nil {
		return victim, fmt.Errorf("evict %v: linked %v: %w", victim, linked, err)
	}
	return victim, nil
}

// Occupied returns the number of live flows.
func (c *Controller) Occupied() int {
	return c.table.Occupied()
}

// Stats returns a copy of the controller counters.
func (c *Controller) Stats() Stats {
	s := c.stats
	s.Occupied = c.table.Occupied()
	s.Capacity = c.table.MaxFlows()
	return s
}

// Close removes every live flow. It keeps going past installer failures and
// returns them joined.
func (c *Controller) Close(ctx context.Context) error {
	var ids []flowid.FlowID
	for _, e := range c.table.Entries() {
		ids = append(ids, e.ID())
	}

	var errs []error
	for _, id := range ids {
		if !c.table.Exists(id) {
			continue // removed with its linked flow
		}
		if err := c.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.log.WarnContext(ctx, "flows left installed", "failed", len(errs))
	}
	return errors.Join(errs...)
}
