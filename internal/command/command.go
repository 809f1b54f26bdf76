// Package command builds outgoing envelopes. Builders are pure: they
// validate their inputs and return a wire-ready protocol.Command, or a
// validation error that never touches the network. The server remains
// the authority; these checks only catch what is locally knowable.
package command

import (
	"errors"

	"pokerclient/internal/protocol"
)

var ErrNotConnected = errors.New("not connected")
var ErrNotRegistered = errors.New("not registered")
var ErrEmptyName = errors.New("player name is empty")
var ErrInvalidChips = errors.New("chip amount must be positive")
var ErrInvalidMaxPlayers = errors.New("max players must be between 2 and 9")
var ErrMissingLobby = errors.New("no lobby id")
var ErrMissingGame = errors.New("no game id")
var ErrNotAdmin = errors.New("only the lobby admin can start the game")
var ErrNotEnoughPlayers = errors.New("need at least two players to start")
var ErrInvalidBlinds = errors.New("blinds must be positive and small blind below big blind")
var ErrRaiseTooSmall = errors.New("raise must be at least current bet plus one big blind")

func Register(playerName string, chips int) (protocol.Command, error) {
	if playerName == "" {
		return protocol.Command{}, ErrEmptyName
	}
	if chips <= 0 {
		return protocol.Command{}, ErrInvalidChips
	}
	return protocol.Command{
		Command: protocol.CmdRegisterPlayer,
		Data:    map[string]any{"playerName": playerName, "chips": chips},
	}, nil
}

func GetLeaderboard(limit int) protocol.Command {
	data := map[string]any{}
	if limit > 0 {
		data["limit"] = limit
	}
	return protocol.Command{Command: protocol.CmdGetLeaderboard, Data: data}
}

func CreateLobby(playerID string, maxPlayers int) (protocol.Command, error) {
	if playerID == "" {
		return protocol.Command{}, ErrNotRegistered
	}
	if maxPlayers < 2 || maxPlayers > 9 {
		return protocol.Command{}, ErrInvalidMaxPlayers
	}
	return protocol.Command{
		Command: protocol.CmdCreateLobby,
		Data:    map[string]any{"playerId": playerID, "maxPlayers": maxPlayers},
	}, nil
}

func JoinLobby(lobbyID, playerID string) (protocol.Command, error) {
	if playerID == "" {
		return protocol.Command{}, ErrNotRegistered
	}
	if lobbyID == "" {
		return protocol.Command{}, ErrMissingLobby
	}
	return protocol.Command{
		Command: protocol.CmdJoinLobby,
		Data:    map[string]any{"lobbyId": lobbyID, "playerId": playerID},
	}, nil
}

func LeaveLobby(lobbyID, playerID string) (protocol.Command, error) {
	if playerID == "" {
		return protocol.Command{}, ErrNotRegistered
	}
	if lobbyID == "" {
		return protocol.Command{}, ErrMissingLobby
	}
	return protocol.Command{
		Command: protocol.CmdLeaveLobby,
		Data:    map[string]any{"lobbyId": lobbyID, "playerId": playerID},
	}, nil
}

// StartGame requires admin rights and at least two members. Violations
// are local validation errors; the server never sees them.
func StartGame(lobbyID string, playerIDs []string, smallBlind, bigBlind int, isAdmin bool) (protocol.Command, error) {
	if !isAdmin {
		return protocol.Command{}, ErrNotAdmin
	}
	if len(playerIDs) < 2 {
		return protocol.Command{}, ErrNotEnoughPlayers
	}
	if lobbyID == "" {
		return protocol.Command{}, ErrMissingLobby
	}
	if smallBlind <= 0 || bigBlind <= smallBlind {
		return protocol.Command{}, ErrInvalidBlinds
	}
	ids := make([]any, len(playerIDs))
	for i, id := range playerIDs {
		ids[i] = id
	}
	return protocol.Command{
		Command: protocol.CmdStartGame,
		Data: map[string]any{
			"lobbyId":    lobbyID,
			"playerIds":  ids,
			"smallBlind": smallBlind,
			"bigBlind":   bigBlind,
		},
	}, nil
}

func GetGameState(gameID string) (protocol.Command, error) {
	if gameID == "" {
		return protocol.Command{}, ErrMissingGame
	}
	return protocol.Command{
		Command: protocol.CmdGetGameState,
		Data:    map[string]any{"gameId": gameID},
	}, nil
}

func GetPlayerCards(gameID, playerID string) (protocol.Command, error) {
	if gameID == "" {
		return protocol.Command{}, ErrMissingGame
	}
	if playerID == "" {
		return protocol.Command{}, ErrNotRegistered
	}
	return protocol.Command{
		Command: protocol.CmdGetPlayerCards,
		Data:    map[string]any{"gameId": gameID, "playerId": playerID},
	}, nil
}

func Fold(gameID, playerID string) (protocol.Command, error) {
	return action(protocol.CmdFold, gameID, playerID, nil)
}

func Check(gameID, playerID string) (protocol.Command, error) {
	return action(protocol.CmdCheck, gameID, playerID, nil)
}

// Call carries the table's current total bet as an absolute target
// amount, the amount the caller must match, not an incremental delta.
// That is the server's contract.
func Call(gameID, playerID string, currentBet int) (protocol.Command, error) {
	return action(protocol.CmdCall, gameID, playerID, &currentBet)
}

// Raise validates the minimum re-raise client-side purely for UX; a
// server rejection still arrives as an ordinary ERROR envelope.
func Raise(gameID, playerID string, amount, currentBet, bigBlind int) (protocol.Command, error) {
	if amount < currentBet+bigBlind {
		return protocol.Command{}, ErrRaiseTooSmall
	}
	return action(protocol.CmdRaise, gameID, playerID, &amount)
}

func AllIn(gameID, playerID string) (protocol.Command, error) {
	return action(protocol.CmdAllIn, gameID, playerID, nil)
}

func action(kind, gameID, playerID string, amount *int) (protocol.Command, error) {
	if gameID == "" {
		return protocol.Command{}, ErrMissingGame
	}
	if playerID == "" {
		return protocol.Command{}, ErrNotRegistered
	}
	data := map[string]any{"gameId": gameID, "playerId": playerID, "action": kind}
	if amount != nil {
		data["amount"] = *amount
	}
	return protocol.Command{Command: kind, Data: data}, nil
}
