package lobby

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pokerclient/internal/identity"
	"pokerclient/internal/protocol"
)

type memStore struct{ rec *identity.Identity }

func (m *memStore) Load() (*identity.Identity, error) { return m.rec, nil }
func (m *memStore) Save(rec identity.Identity) error  { m.rec = &rec; return nil }
func (m *memStore) Clear() error                      { m.rec = nil; return nil }

func localPlayer(t *testing.T, id, name string, chips int) *identity.Projection {
	t.Helper()
	return identity.NewProjection(&memStore{rec: &identity.Identity{
		PlayerID: id, DisplayName: name, Chips: chips,
	}}, zap.NewNop())
}

func createdEvent(lobbyID string, maxPlayers int, players ...map[string]any) protocol.Envelope {
	list := make([]any, len(players))
	for i, p := range players {
		list[i] = p
	}
	return protocol.Envelope{Type: protocol.EventLobbyCreated, Data: map[string]any{
		"lobbyId": lobbyID, "maxPlayers": float64(maxPlayers), "players": list,
	}}
}

func joinDelta(lobbyID, playerID, name string, chips int) protocol.Envelope {
	return protocol.Envelope{Type: protocol.EventPlayerJoinedLobby, Data: map[string]any{
		"lobbyId": lobbyID, "playerId": playerID, "playerName": name, "playerChips": float64(chips),
	}}
}

func TestLobby_CreatedMakesSelfAdmin(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())

	p.Apply(createdEvent("L1", 4, map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}))

	require.True(t, p.InLobby())
	require.True(t, p.IsAdmin())
	require.Equal(t, "L1", p.LobbyID())
	require.Equal(t, 4, p.Snapshot().MaxSeats)
	require.Equal(t, []Member{{ID: "p1", Name: "Alice", Chips: 1000}}, p.Members())
}

func TestLobby_DuplicateJoinIsIdempotent(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())
	p.Apply(createdEvent("L1", 4, map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}))

	p.Apply(joinDelta("L1", "p2", "Bob", 500))
	require.Equal(t, 2, p.MemberCount())

	// The same join echoed back changes nothing.
	p.Apply(joinDelta("L1", "p2", "Bob", 500))
	require.Equal(t, 2, p.MemberCount())

	// Our own creation arriving again as a join is also a no-op.
	p.Apply(joinDelta("L1", "p1", "Alice", 1000))
	require.Equal(t, 2, p.MemberCount())
	require.True(t, p.IsAdmin())
}

func TestLobby_JoinedResponseSeedsWithoutAdmin(t *testing.T) {
	p := NewProjection(localPlayer(t, "p2", "Bob", 500), zap.NewNop())

	p.Apply(protocol.Envelope{Type: protocol.EventLobbyJoined, Data: map[string]any{
		"lobbyId": "L1",
		"players": []any{
			map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)},
			map[string]any{"id": "p2", "name": "Bob", "chips": float64(500)},
		},
	}})

	require.True(t, p.InLobby())
	require.False(t, p.IsAdmin())
	require.Equal(t, 2, p.MemberCount())
	require.Equal(t, []string{"p1", "p2"}, p.MemberIDs())
}

func TestLobby_NestedPlayerShape(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())
	p.Apply(createdEvent("L1", 4, map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}))

	p.Apply(protocol.Envelope{Type: protocol.EventPlayerJoinedLobby, Data: map[string]any{
		"lobbyId": "L1",
		"player":  map[string]any{"id": "p3", "name": "Carol", "chips": float64(750)},
	}})

	require.Equal(t, []string{"p1", "p3"}, p.MemberIDs())
}

func TestLobby_OtherPlayerLeavesOnlyRemoves(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())
	p.Apply(createdEvent("L1", 4, map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}))
	p.Apply(joinDelta("L1", "p2", "Bob", 500))

	p.Apply(protocol.Envelope{Type: protocol.EventPlayerLeftLobby, Data: map[string]any{
		"lobbyId": "L1", "playerId": "p2",
	}})

	require.True(t, p.InLobby())
	require.True(t, p.IsAdmin())
	require.Equal(t, []string{"p1"}, p.MemberIDs())
}

func TestLobby_SelfLeavingTearsDownSnapshot(t *testing.T) {
	p := NewProjection(localPlayer(t, "p2", "Bob", 500), zap.NewNop())
	p.Apply(joinDelta("L1", "p2", "Bob", 500))
	require.True(t, p.InLobby())

	p.Apply(protocol.Envelope{Type: protocol.EventPlayerLeftLobby, Data: map[string]any{
		"lobbyId": "L1", "playerId": "p2",
	}})

	require.False(t, p.InLobby())
	require.Nil(t, p.Snapshot())
	require.Equal(t, 0, p.MemberCount())
}

func TestLobby_GameStartClearsLobby(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())
	p.Apply(createdEvent("L1", 4, map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}))

	p.Apply(protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{"gameId": "G1"}})

	require.False(t, p.InLobby())
}

func TestLobby_DeltaForUnknownLobbyIgnored(t *testing.T) {
	p := NewProjection(localPlayer(t, "p1", "Alice", 1000), zap.NewNop())

	// A join for someone else while we are not in any lobby.
	p.Apply(joinDelta("L9", "p5", "Eve", 100))

	require.False(t, p.InLobby())
}
