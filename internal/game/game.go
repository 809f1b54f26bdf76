// Package game reduces game events into the in-hand table snapshot:
// pot, bets, round, community cards, seats, and the winner overlay.
// This is the most involved reducer; it must merge partial updates
// without ever wholesale-replacing a seeded snapshot, and it must shrug
// off the duplicates and echoes a broadcast stream produces.
package game

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"pokerclient/internal/identity"
	"pokerclient/internal/lobby"
	"pokerclient/internal/protocol"
)

// Round is the betting stage of a hand.
type Round int

const (
	RoundPreFlop Round = iota
	RoundFlop
	RoundTurn
	RoundRiver
	RoundShowdown
)

func (r Round) String() string {
	switch r {
	case RoundPreFlop:
		return "pre-flop"
	case RoundFlop:
		return "flop"
	case RoundTurn:
		return "turn"
	case RoundRiver:
		return "river"
	case RoundShowdown:
		return "showdown"
	default:
		return "unknown"
	}
}

// ParseRound accepts the spellings seen on the wire: "PRE_FLOP",
// "pre-flop", "PREFLOP", "Flop", ...
func ParseRound(s string) (Round, bool) {
	normalized := strings.ToUpper(s)
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "PREFLOP":
		return RoundPreFlop, true
	case "FLOP":
		return RoundFlop, true
	case "TURN":
		return RoundTurn, true
	case "RIVER":
		return RoundRiver, true
	case "SHOWDOWN":
		return RoundShowdown, true
	default:
		return RoundPreFlop, false
	}
}

// Lifecycle tracks the projection's state machine:
// Uninitialized → Seeded → Active → Frozen → (cleared) → Uninitialized.
// Clearing always goes through Frozen.
type Lifecycle int

const (
	LifecycleUninitialized Lifecycle = iota
	LifecycleSeeded
	LifecycleActive
	LifecycleFrozen
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleUninitialized:
		return "uninitialized"
	case LifecycleSeeded:
		return "seeded"
	case LifecycleActive:
		return "active"
	case LifecycleFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

type Seat struct {
	PlayerID     string   `json:"playerId"`
	Name         string   `json:"name"`
	Chips        int      `json:"chips"`
	CommittedBet int      `json:"committedBet"`
	Folded       bool     `json:"folded"`
	AllIn        bool     `json:"allIn"`
	HoleCards    []string `json:"holeCards,omitempty"` // local seat only
}

type Snapshot struct {
	GameID          string   `json:"gameId"`
	Pot             int      `json:"pot"`
	CurrentBet      int      `json:"currentBet"`
	BigBlind        int      `json:"bigBlind"`
	Round           Round    `json:"round"`
	CommunityCards  []string `json:"communityCards"`
	Seats           []Seat   `json:"seats"`
	CurrentPlayerID string   `json:"currentPlayerId"`
}

// Winner is the showdown overlay shown for WinnerDisplayDuration
// before the table is cleared.
type Winner struct {
	WinnerID  string    `json:"winnerId"`
	Name      string    `json:"name"`
	HandRank  string    `json:"handRank"`
	AmountWon int       `json:"amountWon"`
	ExpiresAt time.Time `json:"expiresAt"`
}

const (
	WinnerDisplayDuration = 5 * time.Second
	maxSeats              = 9
	maxCommunityCards     = 5
)

// Scheduler arms a cancellable timer whose fn runs on the client loop,
// so expiry mutates state under the same single-writer rules as
// events. Tests substitute a manual implementation.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

type Projection struct {
	log      *zap.Logger
	identity *identity.Projection
	lobby    *lobby.Projection
	sched    Scheduler

	lifecycle    Lifecycle
	snap         *Snapshot
	winner       *Winner
	cancelExpiry func()
}

func NewProjection(id *identity.Projection, lb *lobby.Projection, sched Scheduler, log *zap.Logger) *Projection {
	return &Projection{log: log, identity: id, lobby: lb, sched: sched}
}

// EventTypes is the projection's router allow-list.
func (p *Projection) EventTypes() []string {
	return []string{
		protocol.EventGameStarted,
		protocol.EventGameStateChanged,
		protocol.EventPlayerAction,
		protocol.EventCardsDealt,
		protocol.EventPlayerCardsDealt,
		protocol.EventRoundCompleted,
		protocol.EventWinnerDetermined,
	}
}

func (p *Projection) Apply(env protocol.Envelope) {
	switch env.Type {
	case protocol.EventGameStarted:
		p.applyStarted(env)
	case protocol.EventGameStateChanged:
		p.applyStateChanged(env)
	case protocol.EventPlayerAction:
		p.applyPlayerAction(env)
	case protocol.EventCardsDealt:
		p.applyCardsDealt(env)
	case protocol.EventPlayerCardsDealt:
		p.applyPlayerCardsDealt(env)
	case protocol.EventRoundCompleted:
		p.applyRoundCompleted(env)
	case protocol.EventWinnerDetermined:
		p.applyWinner(env)
	}
}

// applyStarted seeds the snapshot. Seeding is idempotent per gameId: a
// repeated GAME_STARTED for the same game is a no-op so it can never
// clobber hole cards already dealt to the local seat.
func (p *Projection) applyStarted(env protocol.Envelope) {
	gameID := env.String("gameId")
	if gameID == "" {
		p.log.Warn("game started without gameId")
		return
	}
	if p.snap != nil && p.snap.GameID == gameID {
		p.log.Debug("duplicate GAME_STARTED ignored", zap.String("gameId", gameID))
		return
	}
	// A different game starting supersedes whatever is still pending.
	p.clearLocked("new game")

	smallBlind := env.Int("smallBlind")
	bigBlind := env.Int("bigBlind")
	pot, ok := env.FirstInt("pot")
	if !ok {
		pot = smallBlind + bigBlind
	}
	currentBet, ok := env.FirstInt("currentBet")
	if !ok {
		currentBet = bigBlind
	}

	ids := env.Strings("players")
	if len(ids) == 0 {
		ids = env.Strings("playerIds")
	}

	p.snap = &Snapshot{
		GameID:     gameID,
		Pot:        pot,
		CurrentBet: currentBet,
		BigBlind:   bigBlind,
		Round:      RoundPreFlop,
		Seats:      p.seatsFromLobby(ids),
	}
	p.lifecycle = LifecycleSeeded
	p.log.Info("game seeded",
		zap.String("gameId", gameID),
		zap.Int("seats", len(p.snap.Seats)),
		zap.Int("pot", pot))
}

// seatsFromLobby builds the initial seat list from lobby membership,
// in join order. Ids the lobby does not know still get a seat; their
// name and stack arrive with the first full state response.
func (p *Projection) seatsFromLobby(ids []string) []Seat {
	members := map[string]lobby.Member{}
	order := ids
	if p.lobby != nil {
		for _, m := range p.lobby.Members() {
			members[m.ID] = m
		}
		if len(order) == 0 {
			order = p.lobby.MemberIDs()
		}
	}

	seats := make([]Seat, 0, len(order))
	for _, id := range order {
		if len(seats) == maxSeats {
			break
		}
		seat := Seat{PlayerID: id}
		if m, ok := members[id]; ok {
			seat.Name = m.Name
			seat.Chips = m.Chips
		}
		seats = append(seats, seat)
	}
	return seats
}

// applyStateChanged merges a full or partial state update. The
// response to a GET_GAME_STATE query arrives through this same path
// and may seed an uninitialized projection.
func (p *Projection) applyStateChanged(env protocol.Envelope) {
	if p.lifecycle == LifecycleFrozen {
		return
	}
	gameID := env.String("gameId")

	if p.snap == nil {
		if gameID == "" {
			return
		}
		p.snap = &Snapshot{GameID: gameID, Round: RoundPreFlop}
		p.lifecycle = LifecycleSeeded
	} else if gameID != "" && gameID != p.snap.GameID {
		p.log.Warn("state update for unknown game",
			zap.String("gameId", gameID), zap.String("current", p.snap.GameID))
		return
	}

	if id := env.String("currentPlayerId"); id != "" {
		p.snap.CurrentPlayerID = id
	}
	if pot, ok := env.FirstInt("pot", "newPot"); ok {
		p.snap.Pot = pot
	}
	if bet, ok := env.FirstInt("currentBet"); ok {
		p.snap.CurrentBet = bet
	}
	if bb, ok := env.FirstInt("bigBlind"); ok {
		p.snap.BigBlind = bb
	}
	if r := env.FirstString("round", "newState", "phase"); r != "" {
		if round, ok := ParseRound(r); ok {
			p.snap.Round = round
		}
	}
	if env.Has("communityCards") {
		p.setCommunityCards(env.Strings("communityCards"))
	}
	if env.Has("players") {
		p.mergeSeats(env.Objects("players"))
	}
	p.lifecycle = LifecycleActive
}

// mergeSeats rebuilds the seat list from a full player listing while
// carrying over hole cards already held for the local seat. The
// server never re-sends another player's private cards, and a state
// refresh must not erase ours.
func (p *Projection) mergeSeats(players []map[string]any) {
	localID := p.identity.PlayerID()
	existing := map[string]Seat{}
	for _, s := range p.snap.Seats {
		existing[s.PlayerID] = s
	}

	seats := make([]Seat, 0, len(players))
	for _, obj := range players {
		if len(seats) == maxSeats {
			break
		}
		id := protocol.ObjString(obj, "id", "playerId")
		seat := Seat{
			PlayerID:     id,
			Name:         protocol.ObjString(obj, "name", "playerName"),
			Chips:        protocol.ObjInt(obj, "chips"),
			CommittedBet: protocol.ObjInt(obj, "bet", "committedBet"),
		}
		if f, ok := obj["folded"].(bool); ok {
			seat.Folded = f
		}
		if a, ok := obj["allIn"].(bool); ok {
			seat.AllIn = a
		}
		if prev, ok := existing[id]; ok {
			seat.HoleCards = prev.HoleCards
		}
		if id == localID {
			if cards, ok := obj["cards"].([]any); ok {
				seat.HoleCards = anyToStrings(cards)
			}
		}
		seats = append(seats, seat)
	}
	p.snap.Seats = seats
}

// applyPlayerAction folds another player's action into pot and bet.
// An action by the local player is an echo: the command path already
// applied its effect at send time, and applying the broadcast again
// would double-count.
func (p *Projection) applyPlayerAction(env protocol.Envelope) {
	if p.snap == nil || p.lifecycle == LifecycleFrozen {
		return
	}
	actor := env.FirstString("playerId", "id")
	if actor == "" {
		return
	}
	if actor == p.identity.PlayerID() {
		p.log.Debug("suppressing own action echo", zap.String("action", env.String("action")))
		return
	}

	if pot, ok := env.FirstInt("newPot", "pot"); ok {
		p.snap.Pot = pot
	}
	if bet, ok := env.FirstInt("currentBet"); ok {
		p.snap.CurrentBet = bet
	}

	action := strings.ToUpper(env.String("action"))
	if seat := p.seatFor(actor); seat != nil {
		switch action {
		case protocol.CmdFold:
			seat.Folded = true
		case protocol.CmdAllIn:
			seat.AllIn = true
		}
		if amount, ok := env.FirstInt("amount"); ok && amount > 0 {
			seat.CommittedBet = amount
		}
	}
	p.lifecycle = LifecycleActive
}

// ApplyLocalAction records the effect of a command the local player
// just sent. This is the other half of the echo-suppression contract:
// the update happens here, once, and the broadcast copy is ignored.
// Values are client-side estimates until the next authoritative state
// response.
func (p *Projection) ApplyLocalAction(action string, amount int) {
	if p.snap == nil || p.lifecycle == LifecycleFrozen {
		return
	}
	seat := p.seatFor(p.identity.PlayerID())
	if seat == nil {
		return
	}

	switch action {
	case protocol.CmdFold:
		seat.Folded = true
	case protocol.CmdCheck:
		// nothing changes
	case protocol.CmdCall:
		delta := p.snap.CurrentBet - seat.CommittedBet
		if delta > 0 {
			p.snap.Pot += delta
			seat.CommittedBet = p.snap.CurrentBet
			seat.Chips = max(0, seat.Chips-delta)
		}
	case protocol.CmdRaise:
		delta := amount - seat.CommittedBet
		if delta > 0 {
			p.snap.Pot += delta
			seat.Chips = max(0, seat.Chips-delta)
		}
		seat.CommittedBet = amount
		p.snap.CurrentBet = amount
	case protocol.CmdAllIn:
		delta := seat.Chips
		p.snap.Pot += delta
		seat.CommittedBet += delta
		seat.Chips = 0
		seat.AllIn = true
		if seat.CommittedBet > p.snap.CurrentBet {
			p.snap.CurrentBet = seat.CommittedBet
		}
	}
	p.lifecycle = LifecycleActive
}

// applyCardsDealt appends community cards and advances the phase. The
// board only ever grows within a hand.
func (p *Projection) applyCardsDealt(env protocol.Envelope) {
	if p.snap == nil || p.lifecycle == LifecycleFrozen {
		return
	}

	if all := env.Strings("allCommunityCards"); len(all) > 0 {
		p.setCommunityCards(all)
	} else if fresh := env.Strings("newCards"); len(fresh) > 0 {
		p.setCommunityCards(append(append([]string(nil), p.snap.CommunityCards...), fresh...))
	}

	if r := env.FirstString("phase", "round"); r != "" {
		if round, ok := ParseRound(r); ok {
			p.snap.Round = round
		}
	}
	p.lifecycle = LifecycleActive
}

// setCommunityCards enforces the board invariant: length ≤5 and
// monotonically non-decreasing within a hand.
func (p *Projection) setCommunityCards(cards []string) {
	if len(cards) > maxCommunityCards {
		cards = cards[:maxCommunityCards]
	}
	if len(cards) < len(p.snap.CommunityCards) {
		p.log.Warn("ignoring community card update that would shrink the board",
			zap.Int("have", len(p.snap.CommunityCards)), zap.Int("got", len(cards)))
		return
	}
	p.snap.CommunityCards = cards
}

// applyPlayerCardsDealt stores hole cards, for the local seat only.
// Another seat's private cards are never kept even if a server bug
// broadcast them.
func (p *Projection) applyPlayerCardsDealt(env protocol.Envelope) {
	if p.snap == nil || p.lifecycle == LifecycleFrozen {
		return
	}
	pid := env.FirstString("playerId", "id")
	if pid == "" || pid != p.identity.PlayerID() {
		return
	}
	cards := env.Strings("cards")
	if len(cards) == 0 {
		cards = env.Strings("holeCards")
	}
	if len(cards) == 0 {
		return
	}
	if seat := p.seatFor(pid); seat != nil {
		seat.HoleCards = cards
		p.lifecycle = LifecycleActive
	}
}

// applyRoundCompleted resets the per-street betting state.
func (p *Projection) applyRoundCompleted(env protocol.Envelope) {
	if p.snap == nil || p.lifecycle == LifecycleFrozen {
		return
	}
	p.snap.CurrentBet = 0
	for i := range p.snap.Seats {
		p.snap.Seats[i].CommittedBet = 0
	}
	if r := env.FirstString("round", "phase", "nextRound"); r != "" {
		if round, ok := ParseRound(r); ok {
			p.snap.Round = round
		}
	}
	p.lifecycle = LifecycleActive
}

// applyWinner freezes the snapshot and arms the display window. A new
// announcement supersedes any still-pending expiry: last scheduling
// wins.
func (p *Projection) applyWinner(env protocol.Envelope) {
	if p.snap == nil {
		return
	}
	if p.cancelExpiry != nil {
		p.cancelExpiry()
		p.cancelExpiry = nil
	}

	amount, _ := env.FirstInt("amountWon", "amount")
	p.winner = &Winner{
		WinnerID:  env.FirstString("winnerId", "playerId"),
		Name:      env.FirstString("winnerName", "playerName", "name"),
		HandRank:  env.String("handRank"),
		AmountWon: amount,
		ExpiresAt: time.Now().Add(WinnerDisplayDuration),
	}
	p.lifecycle = LifecycleFrozen
	p.log.Info("winner determined",
		zap.String("winnerId", p.winner.WinnerID),
		zap.String("handRank", p.winner.HandRank),
		zap.Int("amountWon", amount))

	p.cancelExpiry = p.sched.Schedule(WinnerDisplayDuration, func() {
		p.clearLocked("winner display expired")
	})
}

// Teardown clears the game immediately, superseding any pending
// expiry timer.
func (p *Projection) Teardown() {
	p.clearLocked("explicit teardown")
}

func (p *Projection) clearLocked(reason string) {
	if p.cancelExpiry != nil {
		p.cancelExpiry()
		p.cancelExpiry = nil
	}
	if p.snap == nil && p.winner == nil {
		return
	}
	p.log.Info("game cleared", zap.String("reason", reason))
	p.snap = nil
	p.winner = nil
	p.lifecycle = LifecycleUninitialized
}

func anyToStrings(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *Projection) seatFor(playerID string) *Seat {
	for i := range p.snap.Seats {
		if p.snap.Seats[i].PlayerID == playerID {
			return &p.snap.Seats[i]
		}
	}
	return nil
}

// Snapshot returns a deep copy of the game state, or nil when no game
// is live.
func (p *Projection) Snapshot() *Snapshot {
	if p.snap == nil {
		return nil
	}
	c := *p.snap
	c.CommunityCards = append([]string(nil), p.snap.CommunityCards...)
	c.Seats = make([]Seat, len(p.snap.Seats))
	for i, s := range p.snap.Seats {
		c.Seats[i] = s
		c.Seats[i].HoleCards = append([]string(nil), s.HoleCards...)
	}
	return &c
}

// Winner returns a copy of the pending announcement, or nil.
func (p *Projection) Winner() *Winner {
	if p.winner == nil {
		return nil
	}
	w := *p.winner
	return &w
}

func (p *Projection) Lifecycle() Lifecycle { return p.lifecycle }

func (p *Projection) GameID() string {
	if p.snap == nil {
		return ""
	}
	return p.snap.GameID
}

func (p *Projection) InGame() bool { return p.snap != nil }

// IsPlayerTurn derives the turn flag from the snapshot on every call;
// it is never stored, so it can never go stale.
func (p *Projection) IsPlayerTurn() bool {
	return p.snap != nil &&
		p.snap.CurrentPlayerID != "" &&
		p.snap.CurrentPlayerID == p.identity.PlayerID()
}
