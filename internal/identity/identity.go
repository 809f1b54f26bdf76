// Package identity reduces auth events into the local player identity.
// The identity is the only state that survives a restart, through the
// Store.
package identity

import (
	"go.uber.org/zap"

	"pokerclient/internal/protocol"
)

// Identity is the server-confirmed local player.
type Identity struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Chips       int    `json:"chips"`
}

// Store is durable key/value storage for the identity record.
type Store interface {
	Load() (*Identity, error)
	Save(Identity) error
	Clear() error
}

type Projection struct {
	log     *zap.Logger
	store   Store
	current *Identity
}

// NewProjection restores any persisted identity so a restart does not
// force re-registration.
func NewProjection(store Store, log *zap.Logger) *Projection {
	p := &Projection{log: log, store: store}
	rec, err := store.Load()
	if err != nil {
		log.Warn("could not restore identity", zap.Error(err))
		return p
	}
	if rec != nil {
		p.current = rec
		log.Info("restored identity", zap.String("playerId", rec.PlayerID), zap.String("name", rec.DisplayName))
	}
	return p
}

// EventTypes is the projection's router allow-list.
func (p *Projection) EventTypes() []string {
	return []string{protocol.EventPlayerRegistered}
}

func (p *Projection) Apply(env protocol.Envelope) {
	if env.Type != protocol.EventPlayerRegistered {
		return
	}

	id := env.FirstString("playerId", "id")
	if id == "" {
		p.log.Warn("registration event without player id")
		return
	}

	rec := Identity{
		PlayerID:    id,
		DisplayName: env.FirstString("playerName", "name"),
		Chips:       env.Int("chips"),
	}
	p.current = &rec

	if err := p.store.Save(rec); err != nil {
		p.log.Error("could not persist identity", zap.Error(err))
	}
	p.log.Info("registered", zap.String("playerId", rec.PlayerID), zap.Int("chips", rec.Chips))
}

// Current returns a copy of the identity, or nil before registration.
func (p *Projection) Current() *Identity {
	if p.current == nil {
		return nil
	}
	c := *p.current
	return &c
}

// PlayerID returns the local player id, or "" before registration.
func (p *Projection) PlayerID() string {
	if p.current == nil {
		return ""
	}
	return p.current.PlayerID
}

func (p *Projection) Registered() bool { return p.current != nil }

// Logout destroys the identity, in memory and in the store.
func (p *Projection) Logout() {
	p.current = nil
	if err := p.store.Clear(); err != nil {
		p.log.Error("could not clear stored identity", zap.Error(err))
	}
}
