package protocol

// Event types emitted by the server and consumed by the projections.
// The server sends them either as domain events ({eventType, eventId,
// timestamp, data}) or as command responses ({type, success, message,
// data}); Normalize collapses both into one Envelope.
const (
	EventPlayerRegistered  = "PLAYER_REGISTERED"
	EventLobbyCreated      = "LOBBY_CREATED"
	EventLobbyJoined       = "LOBBY_JOINED"
	EventPlayerJoinedLobby = "PLAYER_JOINED_LOBBY"
	EventPlayerLeftLobby   = "PLAYER_LEFT_LOBBY"
	EventGameStarted       = "GAME_STARTED"
	EventGameStateChanged  = "GAME_STATE_CHANGED"
	EventPlayerAction      = "PLAYER_ACTION"
	EventCardsDealt        = "CARDS_DEALT"
	EventPlayerCardsDealt  = "PLAYER_CARDS_DEALT"
	EventRoundCompleted    = "ROUND_COMPLETED"
	EventWinnerDetermined  = "WINNER_DETERMINED"
	EventError             = "ERROR"
	EventSuccess           = "SUCCESS"
	EventWelcome           = "WELCOME"
)

// eventDealtCards is the legacy spelling some server builds use for
// EventCardsDealt. Normalize folds it into the canonical name so the
// projections only ever see one.
const eventDealtCards = "DEALT_CARDS"

// Outgoing command names, matching the server's command handlers.
const (
	CmdRegisterPlayer = "REGISTER_PLAYER"
	CmdGetLeaderboard = "GET_LEADERBOARD"
	CmdCreateLobby    = "CREATE_LOBBY"
	CmdJoinLobby      = "JOIN_LOBBY"
	CmdLeaveLobby     = "LEAVE_LOBBY"
	CmdStartGame      = "START_GAME"
	CmdGetGameState   = "GET_GAME_STATE"
	CmdGetPlayerCards = "GET_PLAYER_CARDS"
	CmdFold           = "FOLD"
	CmdCheck          = "CHECK"
	CmdCall           = "CALL"
	CmdRaise          = "RAISE"
	CmdAllIn          = "ALL_IN"
)
