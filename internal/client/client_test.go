package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pokerclient/internal/command"
	"pokerclient/internal/identity"
	"pokerclient/internal/protocol"
	"pokerclient/internal/transport"
)

type memStore struct{ rec *identity.Identity }

func (m *memStore) Load() (*identity.Identity, error) { return m.rec, nil }
func (m *memStore) Save(rec identity.Identity) error  { m.rec = &rec; return nil }
func (m *memStore) Clear() error                      { m.rec = nil; return nil }

// fakeConn stands in for the websocket transport: tests feed envelopes
// and state changes in and capture everything sent.
type fakeConn struct {
	mu        sync.Mutex
	state     transport.State
	sent      []protocol.Command
	envelopes chan protocol.Envelope
	states    chan transport.State
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		envelopes: make(chan protocol.Envelope, 16),
		states:    make(chan transport.State, 16),
	}
}

func (f *fakeConn) Connect(context.Context) error {
	f.setState(transport.StateConnected)
	return nil
}

func (f *fakeConn) Disconnect() { f.setState(transport.StateDisconnected) }

func (f *fakeConn) setState(s transport.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.states <- s
}

func (f *fakeConn) Send(_ context.Context, cmd protocol.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.StateConnected {
		return transport.ErrNotConnected
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeConn) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Attempts() int { return 0 }

func (f *fakeConn) Envelopes() <-chan protocol.Envelope { return f.envelopes }
func (f *fakeConn) States() <-chan transport.State      { return f.states }

func (f *fakeConn) sentCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, cmd := range f.sent {
		out[i] = cmd.Command
	}
	return out
}

// deliver pushes a server event and waits until the loop has folded it
// into the projections.
func deliver(t *testing.T, c *Client, fc *fakeConn, env protocol.Envelope, applied func(View) bool) {
	t.Helper()
	fc.envelopes <- env
	require.Eventually(t, func() bool {
		return applied(c.View())
	}, time.Second, 5*time.Millisecond, "event %s never applied", env.Type)
}

func newTestClient(t *testing.T) (*Client, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	c := New(fc, &memStore{}, zap.NewNop())
	t.Cleanup(c.Close)
	require.NoError(t, c.Connect(context.Background()))
	return c, fc
}

func TestClient_RegisterRefusedWhileDisconnected(t *testing.T) {
	fc := newFakeConn()
	c := New(fc, &memStore{}, zap.NewNop())
	defer c.Close()

	err := c.Register("Alice", 1000)
	require.ErrorIs(t, err, command.ErrNotConnected)
	require.Empty(t, fc.sentCommands())
}

// TestClient_FullSession walks the register → lobby → game → winner
// flow end to end through the loop.
func TestClient_FullSession(t *testing.T) {
	c, fc := newTestClient(t)

	// 1) register and get confirmed
	require.NoError(t, c.Register("Alice", 1000))
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerRegistered, Data: map[string]any{
		"id": "p1", "name": "Alice", "chips": float64(1000),
	}}, func(v View) bool { return v.Identity != nil })
	require.Equal(t, 1000, c.View().Identity.Chips)

	// 2) create a lobby, become admin
	require.NoError(t, c.CreateLobby(4))
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventLobbyCreated, Data: map[string]any{
		"lobbyId": "L1", "maxPlayers": float64(4),
		"players": []any{map[string]any{"id": "p1", "name": "Alice", "chips": float64(1000)}},
	}}, func(v View) bool { return v.Lobby != nil })
	v := c.View()
	require.True(t, v.Lobby.IsAdmin)
	require.Len(t, v.Lobby.Members, 1)

	// 3) starting alone is rejected locally
	require.ErrorIs(t, c.StartGame(10, 20), command.ErrNotEnoughPlayers)

	// 4) a second player joins; start is now permitted
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerJoinedLobby, Data: map[string]any{
		"lobbyId": "L1", "playerId": "p2", "playerName": "Bob", "playerChips": float64(500),
	}}, func(v View) bool { return v.Lobby != nil && len(v.Lobby.Members) == 2 })
	require.NoError(t, c.StartGame(10, 20))

	// 5) game seeds from lobby membership; the lobby snapshot is gone
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{
		"gameId": "G1", "pot": float64(30), "currentBet": float64(20),
		"smallBlind": float64(10), "bigBlind": float64(20),
		"players": []any{"p1", "p2"},
	}}, func(v View) bool { return v.Game != nil })
	v = c.View()
	require.Nil(t, v.Lobby)
	require.Equal(t, 30, v.Game.Pot)
	require.Len(t, v.Game.Seats, 2)
	require.Equal(t, "Alice", v.Game.Seats[0].Name)

	// a duplicate GAME_STARTED is a no-op; the marker event after it
	// proves the duplicate has been processed before we assert
	fc.envelopes <- protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{
		"gameId": "G1", "pot": float64(999), "players": []any{"p1", "p2"},
	}}
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStateChanged, Data: map[string]any{
		"gameId": "G1", "currentPlayerId": "p2",
	}}, func(v View) bool { return v.Game != nil && v.Game.CurrentPlayerID == "p2" })
	require.Equal(t, 30, c.View().Game.Pot)

	// 6) another player's raise moves pot and bet
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerAction, Data: map[string]any{
		"gameId": "G1", "playerId": "p2", "action": "RAISE",
		"amount": float64(40), "newPot": float64(70), "currentBet": float64(40),
	}}, func(v View) bool { return v.Game != nil && v.Game.Pot == 70 })
	require.Equal(t, 40, c.View().Game.CurrentBet)

	// 7) winner overlay freezes the table
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventWinnerDetermined, Data: map[string]any{
		"gameId": "G1", "winnerId": "p1", "winnerName": "Alice",
		"handRank": "TWO_PAIR", "amountWon": float64(70),
	}}, func(v View) bool { return v.Winner != nil })
	v = c.View()
	require.Equal(t, "p1", v.Winner.WinnerID)
	require.Equal(t, 70, v.Winner.AmountWon)
	require.Equal(t, "frozen", v.GameLifecycle)
}

func TestClient_GameStartedTriggersStateQuery(t *testing.T) {
	c, fc := newTestClient(t)

	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerRegistered, Data: map[string]any{
		"id": "p1", "name": "Alice", "chips": float64(1000),
	}}, func(v View) bool { return v.Identity != nil })

	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{
		"gameId": "G1", "players": []any{"p1", "p2"}, "bigBlind": float64(20),
	}}, func(v View) bool { return v.Game != nil })

	require.Eventually(t, func() bool {
		for _, cmd := range fc.sentCommands() {
			if cmd == protocol.CmdGetGameState {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestClient_ReconnectResyncsKnownGame(t *testing.T) {
	c, fc := newTestClient(t)

	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerRegistered, Data: map[string]any{
		"id": "p1", "name": "Alice", "chips": float64(1000),
	}}, func(v View) bool { return v.Identity != nil })
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{
		"gameId": "G1", "players": []any{"p1", "p2"}, "bigBlind": float64(20),
	}}, func(v View) bool { return v.Game != nil })

	before := len(fc.sentCommands())

	// Drop and come back: the client must re-request canonical state,
	// there is no replay of missed events.
	fc.setState(transport.StateDisconnected)
	fc.setState(transport.StateConnected)

	require.Eventually(t, func() bool {
		cmds := fc.sentCommands()
		var state, cards bool
		for _, cmd := range cmds[before:] {
			switch cmd {
			case protocol.CmdGetGameState:
				state = true
			case protocol.CmdGetPlayerCards:
				cards = true
			}
		}
		return state && cards
	}, time.Second, 5*time.Millisecond)
}

func TestClient_BettingActionAppliesLocally(t *testing.T) {
	c, fc := newTestClient(t)

	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventPlayerRegistered, Data: map[string]any{
		"id": "p1", "name": "Alice", "chips": float64(1000),
	}}, func(v View) bool { return v.Identity != nil })
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStarted, Data: map[string]any{
		"gameId": "G1", "pot": float64(30), "currentBet": float64(20),
		"smallBlind": float64(10), "bigBlind": float64(20), "players": []any{"p1", "p2"},
	}}, func(v View) bool { return v.Game != nil })

	// Raise below min increment is a local validation error.
	require.ErrorIs(t, c.Raise(30), command.ErrRaiseTooSmall)

	require.NoError(t, c.Raise(40))
	v := c.View()
	require.Equal(t, 70, v.Game.Pot)
	require.Equal(t, 40, v.Game.CurrentBet)

	// The echo of our own raise changes nothing. Events apply in
	// order, so once the marker lands the echo has been seen.
	fc.envelopes <- protocol.Envelope{Type: protocol.EventPlayerAction, Data: map[string]any{
		"gameId": "G1", "playerId": "p1", "action": "RAISE",
		"amount": float64(40), "newPot": float64(110), "currentBet": float64(80),
	}}
	deliver(t, c, fc, protocol.Envelope{Type: protocol.EventGameStateChanged, Data: map[string]any{
		"gameId": "G1", "currentPlayerId": "p2",
	}}, func(v View) bool { return v.Game != nil && v.Game.CurrentPlayerID == "p2" })
	v = c.View()
	require.Equal(t, 70, v.Game.Pot)
	require.Equal(t, 40, v.Game.CurrentBet)
}

func TestClient_ActionsWithoutGameFailLocally(t *testing.T) {
	c, _ := newTestClient(t)

	require.ErrorIs(t, c.Fold(), command.ErrMissingGame)
	require.ErrorIs(t, c.Call(), command.ErrMissingGame)
}

func TestClient_NotificationsForwarded(t *testing.T) {
	c, fc := newTestClient(t)

	fc.envelopes <- protocol.Envelope{Type: protocol.EventError, Data: map[string]any{
		"message": "lobby is full",
	}}

	select {
	case env := <-c.Notifications():
		require.Equal(t, protocol.EventError, env.Type)
		require.Equal(t, "lobby is full", env.String("message"))
	case <-time.After(time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestClient_LogoutDestroysSession(t *testing.T) {
	st := &memStore{rec: &identity.Identity{PlayerID: "p1", DisplayName: "Alice", Chips: 1000}}
	fc := newFakeConn()
	c := New(fc, st, zap.NewNop())
	defer c.Close()

	require.NotNil(t, c.View().Identity)

	require.NoError(t, c.Logout())
	v := c.View()
	require.Nil(t, v.Identity)
	require.Nil(t, v.Lobby)
	require.Nil(t, v.Game)
	require.Nil(t, st.rec)
}
