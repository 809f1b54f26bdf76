// Package lobby reduces lobby events into the local membership
// snapshot. At most one lobby is live per session; it exists only
// between a create/join and a leave or the transition into a game.
package lobby

import (
	"go.uber.org/zap"

	"pokerclient/internal/identity"
	"pokerclient/internal/protocol"
)

type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Chips int    `json:"chips"`
}

type Snapshot struct {
	LobbyID  string   `json:"lobbyId"`
	IsAdmin  bool     `json:"isAdmin"`
	MaxSeats int      `json:"maxSeats"`
	Members  []Member `json:"members"`
}

type Projection struct {
	log      *zap.Logger
	identity *identity.Projection
	snap     *Snapshot
}

func NewProjection(id *identity.Projection, log *zap.Logger) *Projection {
	return &Projection{log: log, identity: id}
}

// EventTypes is the projection's router allow-list. GAME_STARTED is in
// it because starting a game destroys the lobby snapshot.
func (p *Projection) EventTypes() []string {
	return []string{
		protocol.EventLobbyCreated,
		protocol.EventLobbyJoined,
		protocol.EventPlayerJoinedLobby,
		protocol.EventPlayerLeftLobby,
		protocol.EventGameStarted,
	}
}

func (p *Projection) Apply(env protocol.Envelope) {
	switch env.Type {
	case protocol.EventLobbyCreated:
		p.applyCreated(env)
	case protocol.EventLobbyJoined:
		p.applyJoined(env)
	case protocol.EventPlayerJoinedLobby:
		p.applyPlayerJoined(env)
	case protocol.EventPlayerLeftLobby:
		p.applyPlayerLeft(env)
	case protocol.EventGameStarted:
		if p.snap != nil {
			p.log.Info("lobby cleared, game starting", zap.String("lobbyId", p.snap.LobbyID))
			p.snap = nil
		}
	}
}

// applyCreated is a full replace: we created the lobby, so we are the
// admin. The admin flag is fixed here and never re-derived from later
// membership changes.
func (p *Projection) applyCreated(env protocol.Envelope) {
	members := membersFromList(env.Objects("players"))
	if len(members) == 0 {
		if me := p.identity.Current(); me != nil {
			members = []Member{{ID: me.PlayerID, Name: me.DisplayName, Chips: me.Chips}}
		}
	}
	p.snap = &Snapshot{
		LobbyID:  env.String("lobbyId"),
		IsAdmin:  true,
		MaxSeats: maxSeatsOrDefault(env),
		Members:  members,
	}
	p.log.Info("lobby created", zap.String("lobbyId", p.snap.LobbyID), zap.Int("maxSeats", p.snap.MaxSeats))
}

// applyJoined handles the command response a joiner receives. It
// carries the full member list, so it seeds the snapshot, without
// admin rights.
func (p *Projection) applyJoined(env protocol.Envelope) {
	p.snap = &Snapshot{
		LobbyID:  env.String("lobbyId"),
		IsAdmin:  false,
		MaxSeats: maxSeatsOrDefault(env),
		Members:  membersFromList(env.Objects("players")),
	}
	p.log.Info("joined lobby", zap.String("lobbyId", p.snap.LobbyID), zap.Int("members", len(p.snap.Members)))
}

// applyPlayerJoined is the broadcast delta. Appends are idempotent:
// a duplicate or echoed join, including our own creation event coming
// back as a join, changes nothing.
func (p *Projection) applyPlayerJoined(env protocol.Envelope) {
	m := memberFromEnvelope(env)
	if m.ID == "" {
		p.log.Warn("join event without player id")
		return
	}

	if p.snap == nil {
		// The delta can only seed a lobby for ourselves.
		if m.ID != p.identity.PlayerID() {
			return
		}
		p.snap = &Snapshot{
			LobbyID:  env.String("lobbyId"),
			IsAdmin:  false,
			MaxSeats: maxSeatsOrDefault(env),
			Members:  []Member{m},
		}
		return
	}

	for _, existing := range p.snap.Members {
		if existing.ID == m.ID {
			return
		}
	}
	p.snap.Members = append(p.snap.Members, m)
	if n := env.Int("maxPlayers"); n > 0 {
		p.snap.MaxSeats = n
	}
	p.log.Info("player joined", zap.String("playerId", m.ID), zap.Int("members", len(p.snap.Members)))
}

func (p *Projection) applyPlayerLeft(env protocol.Envelope) {
	if p.snap == nil {
		return
	}
	id := env.FirstString("playerId", "id")
	if id == "" {
		return
	}

	if id == p.identity.PlayerID() {
		p.log.Info("left lobby", zap.String("lobbyId", p.snap.LobbyID))
		p.snap = nil
		return
	}

	for i, m := range p.snap.Members {
		if m.ID == id {
			p.snap.Members = append(p.snap.Members[:i], p.snap.Members[i+1:]...)
			break
		}
	}
}

// Reset drops the snapshot. Used when the identity is destroyed: a
// lobby only exists while an identity does.
func (p *Projection) Reset() {
	p.snap = nil
}

// Snapshot returns a copy of the lobby state, or nil when not in a
// lobby.
func (p *Projection) Snapshot() *Snapshot {
	if p.snap == nil {
		return nil
	}
	c := *p.snap
	c.Members = append([]Member(nil), p.snap.Members...)
	return &c
}

func (p *Projection) InLobby() bool { return p.snap != nil }

func (p *Projection) IsAdmin() bool { return p.snap != nil && p.snap.IsAdmin }

func (p *Projection) MemberCount() int {
	if p.snap == nil {
		return 0
	}
	return len(p.snap.Members)
}

func (p *Projection) LobbyID() string {
	if p.snap == nil {
		return ""
	}
	return p.snap.LobbyID
}

// MemberIDs returns member ids in join order, for START_GAME.
func (p *Projection) MemberIDs() []string {
	if p.snap == nil {
		return nil
	}
	ids := make([]string, len(p.snap.Members))
	for i, m := range p.snap.Members {
		ids[i] = m.ID
	}
	return ids
}

// Members returns a copy of the member list in join order.
func (p *Projection) Members() []Member {
	if p.snap == nil {
		return nil
	}
	return append([]Member(nil), p.snap.Members...)
}

func maxSeatsOrDefault(env protocol.Envelope) int {
	if n := env.Int("maxPlayers"); n > 0 {
		return n
	}
	return 9
}

func membersFromList(list []map[string]any) []Member {
	members := make([]Member, 0, len(list))
	for _, obj := range list {
		members = append(members, Member{
			ID:    protocol.ObjString(obj, "id", "playerId"),
			Name:  protocol.ObjString(obj, "name", "playerName"),
			Chips: protocol.ObjInt(obj, "chips"),
		})
	}
	return members
}

// memberFromEnvelope reads the joining player from either wire shape:
// a nested player object or flat playerId/playerName/playerChips.
func memberFromEnvelope(env protocol.Envelope) Member {
	if obj, ok := env.Data["player"].(map[string]any); ok {
		return Member{
			ID:    protocol.ObjString(obj, "id", "playerId"),
			Name:  protocol.ObjString(obj, "name", "playerName"),
			Chips: protocol.ObjInt(obj, "chips"),
		}
	}
	chips, _ := env.FirstInt("playerChips", "chips")
	return Member{
		ID:    env.FirstString("playerId", "id"),
		Name:  env.FirstString("playerName", "name"),
		Chips: chips,
	}
}
