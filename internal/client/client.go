// Package client ties transport, router, and projections together
// behind one actor loop. A single goroutine drains the inbox and is
// the only writer of projection state, so reducers need no locking;
// callers talk to it through request messages with reply channels.
package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pokerclient/internal/command"
	"pokerclient/internal/game"
	"pokerclient/internal/identity"
	"pokerclient/internal/lobby"
	"pokerclient/internal/protocol"
	"pokerclient/internal/router"
	"pokerclient/internal/transport"
)

var ErrClosed = errors.New("client closed")

// Conn is what the client needs from the transport. *transport.Transport
// satisfies it; tests drive a fake.
type Conn interface {
	Connect(ctx context.Context) error
	Disconnect()
	Send(ctx context.Context, cmd protocol.Command) error
	State() transport.State
	Attempts() int
	Envelopes() <-chan protocol.Envelope
	States() <-chan transport.State
}

type msg interface{ isClientMsg() }

// request runs fn on the loop goroutine and reports its error.
type request struct {
	fn    func() error
	reply chan error
}

// timerFire delivers a scheduled callback into the loop so timers
// mutate state under the same single-writer rules as events.
type timerFire struct{ fn func() }

// getView asks the loop for a consistent copy of all projections.
type getView struct{ reply chan View }

func (request) isClientMsg()   {}
func (timerFire) isClientMsg() {}
func (getView) isClientMsg()   {}

// View is a race-free copy of everything a consumer renders.
type View struct {
	Connection       transport.State    `json:"-"`
	ConnectionState  string             `json:"connection"`
	ReconnectAttempt int                `json:"reconnectAttempt"`
	Identity         *identity.Identity `json:"identity,omitempty"`
	Lobby            *lobby.Snapshot    `json:"lobby,omitempty"`
	Game             *game.Snapshot     `json:"game,omitempty"`
	Winner           *game.Winner       `json:"winner,omitempty"`
	GameLifecycle    string             `json:"gameLifecycle"`
	IsPlayerTurn     bool               `json:"isPlayerTurn"`
}

type Client struct {
	log  *zap.Logger
	conn Conn

	router   *router.Router
	identity *identity.Projection
	lobby    *lobby.Projection
	game     *game.Projection

	inbox         chan msg
	notifications chan protocol.Envelope

	ctx    context.Context
	cancel context.CancelFunc
}

type schedulerFunc func(d time.Duration, fn func()) func()

func (f schedulerFunc) Schedule(d time.Duration, fn func()) func() { return f(d, fn) }

func New(conn Conn, st identity.Store, log *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		log:           log,
		conn:          conn,
		router:        router.New(),
		inbox:         make(chan msg, 64),
		notifications: make(chan protocol.Envelope, 16),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.identity = identity.NewProjection(st, log.Named("identity"))
	c.lobby = lobby.NewProjection(c.identity, log.Named("lobby"))
	c.game = game.NewProjection(c.identity, c.lobby, schedulerFunc(c.schedule), log.Named("game"))

	// Registration order is a contract: identity first so a
	// registration response is applied before anything reads the local
	// id from the same envelope's siblings; game before lobby so
	// GAME_STARTED seeds seats from the lobby membership before the
	// lobby projection tears its snapshot down.
	c.router.Subscribe(c.identity.EventTypes(), c.identity.Apply)
	c.router.Subscribe(c.game.EventTypes(), c.game.Apply)
	c.router.Subscribe(c.lobby.EventTypes(), c.lobby.Apply)
	c.router.Subscribe([]string{protocol.EventGameStarted}, c.onGameStarted)
	c.router.Subscribe([]string{
		protocol.EventError,
		protocol.EventSuccess,
		protocol.EventWelcome,
	}, c.notify)

	go c.loop()
	return c
}

func (c *Client) loop() {
	for {
		select {
		case <-c.ctx.Done():
			return

		case env := <-c.conn.Envelopes():
			c.router.Publish(env)

		case s := <-c.conn.States():
			c.onConnState(s)

		case m := <-c.inbox:
			switch m := m.(type) {
			case request:
				m.reply <- m.fn()
			case timerFire:
				m.fn()
			case getView:
				m.reply <- c.view()
			}
		}
	}
}

// schedule arms a cancellable timer that fires back into the loop.
func (c *Client) schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() {
		select {
		case c.inbox <- timerFire{fn: fn}:
		case <-c.ctx.Done():
		}
	})
	return func() { t.Stop() }
}

// onConnState reacts to transport transitions. There is no replay
// guarantee across a reconnect, so if a game is still known the client
// re-requests canonical state instead of assuming it missed nothing.
func (c *Client) onConnState(s transport.State) {
	c.log.Info("connection state", zap.Stringer("state", s))
	if s != transport.StateConnected {
		return
	}
	if gameID := c.game.GameID(); gameID != "" {
		c.log.Info("resyncing game after reconnect", zap.String("gameId", gameID))
		if cmd, err := command.GetGameState(gameID); err == nil {
			c.send(cmd)
		}
		if cmd, err := command.GetPlayerCards(gameID, c.identity.PlayerID()); err == nil {
			c.send(cmd)
		}
	}
}

// onGameStarted requests the full canonical state right after seeding,
// the seed event only carries ids and blind levels.
func (c *Client) onGameStarted(env protocol.Envelope) {
	gameID := env.String("gameId")
	if gameID == "" {
		return
	}
	if cmd, err := command.GetGameState(gameID); err == nil {
		c.send(cmd)
	}
}

func (c *Client) notify(env protocol.Envelope) {
	if env.Type == protocol.EventError {
		c.log.Warn("server error", zap.String("message", env.String("message")))
	}
	select {
	case c.notifications <- env:
	default:
		// A consumer that stopped draining loses notifications, never
		// the loop.
	}
}

func (c *Client) send(cmd protocol.Command) error {
	return c.conn.Send(c.ctx, cmd)
}

// do runs fn on the loop goroutine and waits for its result.
func (c *Client) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- request{fn: fn, reply: reply}:
	case <-c.ctx.Done():
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Client) view() View {
	v := View{
		Connection:       c.conn.State(),
		ConnectionState:  c.conn.State().String(),
		ReconnectAttempt: c.conn.Attempts(),
		Identity:         c.identity.Current(),
		Lobby:            c.lobby.Snapshot(),
		Game:             c.game.Snapshot(),
		Winner:           c.game.Winner(),
		GameLifecycle:    c.game.Lifecycle().String(),
		IsPlayerTurn:     c.game.IsPlayerTurn(),
	}
	return v
}

// Connect opens the transport. Safe to call repeatedly.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect closes the transport without retrying.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close shuts the loop down and closes the connection.
func (c *Client) Close() {
	c.cancel()
	c.conn.Disconnect()
}

// View returns a consistent copy of all client state.
func (c *Client) View() View {
	reply := make(chan View, 1)
	select {
	case c.inbox <- getView{reply: reply}:
	case <-c.ctx.Done():
		return View{ConnectionState: transport.StateDisconnected.String()}
	}
	select {
	case v := <-reply:
		return v
	case <-c.ctx.Done():
		return View{ConnectionState: transport.StateDisconnected.String()}
	}
}

// Notifications delivers ERROR / SUCCESS / WELCOME envelopes; showing
// them is the consumer's job.
func (c *Client) Notifications() <-chan protocol.Envelope {
	return c.notifications
}

// Register asks the server for a player identity. Refused locally
// while the transport is not connected.
func (c *Client) Register(name string, chips int) error {
	return c.do(func() error {
		if c.conn.State() != transport.StateConnected {
			return command.ErrNotConnected
		}
		cmd, err := command.Register(name, chips)
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

// Logout destroys the identity and all session state. Purely local.
func (c *Client) Logout() error {
	return c.do(func() error {
		c.game.Teardown()
		c.lobby.Reset()
		c.identity.Logout()
		return nil
	})
}

func (c *Client) CreateLobby(maxPlayers int) error {
	return c.do(func() error {
		cmd, err := command.CreateLobby(c.identity.PlayerID(), maxPlayers)
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

func (c *Client) JoinLobby(lobbyID string) error {
	return c.do(func() error {
		cmd, err := command.JoinLobby(lobbyID, c.identity.PlayerID())
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

func (c *Client) LeaveLobby() error {
	return c.do(func() error {
		cmd, err := command.LeaveLobby(c.lobby.LobbyID(), c.identity.PlayerID())
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

// StartGame is admin-only and needs at least two members; violations
// fail locally without contacting the server.
func (c *Client) StartGame(smallBlind, bigBlind int) error {
	return c.do(func() error {
		cmd, err := command.StartGame(
			c.lobby.LobbyID(),
			c.lobby.MemberIDs(),
			smallBlind,
			bigBlind,
			c.lobby.IsAdmin(),
		)
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

// RequestGameState re-queries canonical state for the current game.
func (c *Client) RequestGameState() error {
	return c.do(func() error {
		cmd, err := command.GetGameState(c.game.GameID())
		if err != nil {
			return err
		}
		return c.send(cmd)
	})
}

func (c *Client) Leaderboard(limit int) error {
	return c.do(func() error {
		return c.send(command.GetLeaderboard(limit))
	})
}

func (c *Client) Fold() error {
	return c.action(func(snap *game.Snapshot, pid string) (protocol.Command, int, error) {
		cmd, err := command.Fold(snap.GameID, pid)
		return cmd, 0, err
	})
}

func (c *Client) Check() error {
	return c.action(func(snap *game.Snapshot, pid string) (protocol.Command, int, error) {
		cmd, err := command.Check(snap.GameID, pid)
		return cmd, 0, err
	})
}

func (c *Client) Call() error {
	return c.action(func(snap *game.Snapshot, pid string) (protocol.Command, int, error) {
		cmd, err := command.Call(snap.GameID, pid, snap.CurrentBet)
		return cmd, 0, err
	})
}

func (c *Client) Raise(amount int) error {
	return c.action(func(snap *game.Snapshot, pid string) (protocol.Command, int, error) {
		cmd, err := command.Raise(snap.GameID, pid, amount, snap.CurrentBet, snap.BigBlind)
		return cmd, amount, err
	})
}

func (c *Client) AllIn() error {
	return c.action(func(snap *game.Snapshot, pid string) (protocol.Command, int, error) {
		cmd, err := command.AllIn(snap.GameID, pid)
		return cmd, 0, err
	})
}

// action builds and sends a betting command, then folds its effect
// into the local snapshot. That local application is what makes the
// later broadcast echo safe to drop.
func (c *Client) action(build func(*game.Snapshot, string) (protocol.Command, int, error)) error {
	return c.do(func() error {
		snap := c.game.Snapshot()
		if snap == nil {
			return command.ErrMissingGame
		}
		cmd, amount, err := build(snap, c.identity.PlayerID())
		if err != nil {
			return err
		}
		if err := c.send(cmd); err != nil {
			return err
		}
		c.game.ApplyLocalAction(cmd.Command, amount)
		return nil
	})
}
