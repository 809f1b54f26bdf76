package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pokerclient/internal/client"
	"pokerclient/internal/debugapi"
	"pokerclient/internal/store"
	"pokerclient/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	serverURL := envOr("POKER_SERVER_URL", "ws://localhost:8080/ws")
	dbPath := envOr("POKER_DB_PATH", "pokerclient.db")
	debugAddr := os.Getenv("POKER_DEBUG_ADDR")

	log, err := newLogger(envOr("POKER_LOG_LEVEL", "warn"), envOr("POKER_LOG_FILE", ""))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	st, err := store.Open(dbPath)
	if err != nil {
		pterm.Error.Printfln("open identity store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	conn := transport.New(serverURL, log.Named("transport"))
	c := client.New(conn, st, log.Named("client"))
	defer c.Close()

	if debugAddr != "" {
		go func() {
			if err := http.ListenAndServe(debugAddr, debugapi.SetupRoutes(c)); err != nil {
				log.Error("debug api stopped", zap.Error(err))
			}
		}()
	}

	if err := c.Connect(context.Background()); err != nil {
		pterm.Error.Printfln("connect: %v", err)
	}

	go printNotifications(c)

	printBanner(serverURL)
	if v := c.View(); v.Identity != nil {
		pterm.Info.Printfln("welcome back, %s (%d chips)", v.Identity.DisplayName, v.Identity.Chips)
	}

	runREPL(c)

	pterm.Println("bye")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger keeps the terminal clean: logs go to a file when one is
// configured, otherwise to stderr at the configured level.
func newLogger(level, file string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}
	return cfg.Build()
}

func printBanner(serverURL string) {
	pterm.DefaultBox.
		WithLeftPadding(2).WithRightPadding(2).
		WithTitle(pterm.LightYellow("poker client")).
		WithTitleTopCenter().
		Printfln("server: %s\ntype 'help' for commands", serverURL)
}

func printNotifications(c *client.Client) {
	for env := range c.Notifications() {
		msg := env.FirstString("message", "error")
		switch env.Type {
		case "ERROR":
			pterm.Error.Printfln("server: %s", msg)
		case "WELCOME":
			pterm.Info.Printfln("connected: %s", msg)
		default:
			if msg != "" {
				pterm.Success.Printfln("server: %s", msg)
			}
		}
	}
}

func runREPL(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		pterm.Print(pterm.LightCyan("> "))
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		var err error
		switch cmd {
		case "help":
			printHelp()
		case "register":
			err = doRegister(c, args)
		case "logout":
			err = c.Logout()
		case "create":
			err = doCreate(c, args)
		case "join":
			err = doJoin(c, args)
		case "leave":
			err = c.LeaveLobby()
		case "start":
			err = doStart(c, args)
		case "check":
			err = c.Check()
		case "call":
			err = c.Call()
		case "raise":
			err = doRaise(c, args)
		case "fold":
			err = c.Fold()
		case "allin":
			err = c.AllIn()
		case "top":
			err = c.Leaderboard(10)
		case "sync":
			err = c.RequestGameState()
		case "state":
			printState(c.View())
		case "quit", "exit":
			c.Disconnect()
			return
		default:
			pterm.Warning.Printfln("unknown command %q, try 'help'", cmd)
		}
		if err != nil {
			pterm.Error.Println(err)
		}
	}
}

func printHelp() {
	pterm.DefaultBox.WithLeftPadding(2).WithRightPadding(2).Println(strings.TrimSpace(`
register <name> <chips>   register with the server
logout                    forget the local identity
create <maxPlayers>       create a lobby
join <lobbyId>            join a lobby
leave                     leave the current lobby
start <smallBlind> <bigBlind>
check | call | fold | allin
raise <amount>            raise to <amount>
top                       request the leaderboard
sync                      re-request game state
state                     show the local view
quit                      disconnect and exit`))
}

func doRegister(c *client.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: register <name> <chips>")
	}
	chips, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("chips must be a number: %w", err)
	}
	return c.Register(args[0], chips)
}

func doCreate(c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: create <maxPlayers>")
	}
	maxPlayers, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("maxPlayers must be a number: %w", err)
	}
	return c.CreateLobby(maxPlayers)
}

func doJoin(c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: join <lobbyId>")
	}
	return c.JoinLobby(args[0])
}

func doStart(c *client.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: start <smallBlind> <bigBlind>")
	}
	sb, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("smallBlind must be a number: %w", err)
	}
	bb, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bigBlind must be a number: %w", err)
	}
	return c.StartGame(sb, bb)
}

func doRaise(c *client.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: raise <amount>")
	}
	amount, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	return c.Raise(amount)
}

func printState(v client.View) {
	pterm.Printfln("connection: %s (retry %d)", v.ConnectionState, v.ReconnectAttempt)

	if v.Identity == nil {
		pterm.Println("not registered")
		return
	}
	pterm.Printfln("you: %s (%s) %d chips", v.Identity.DisplayName, v.Identity.PlayerID, v.Identity.Chips)

	if v.Lobby != nil {
		rows := pterm.TableData{{"player", "chips", "admin"}}
		for _, m := range v.Lobby.Members {
			admin := ""
			if m.ID == v.Identity.PlayerID && v.Lobby.IsAdmin {
				admin = "yes"
			}
			rows = append(rows, []string{m.Name, strconv.Itoa(m.Chips), admin})
		}
		pterm.Printfln("lobby %s (%d/%d)", v.Lobby.LobbyID, len(v.Lobby.Members), v.Lobby.MaxSeats)
		_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}

	if v.Game != nil {
		pterm.Printfln("game %s [%s] round=%s pot=%d bet=%d",
			v.Game.GameID, v.GameLifecycle, v.Game.Round, v.Game.Pot, v.Game.CurrentBet)
		if len(v.Game.CommunityCards) > 0 {
			pterm.Printfln("board: %s", strings.Join(v.Game.CommunityCards, " "))
		}
		rows := pterm.TableData{{"seat", "chips", "bet", "status"}}
		for _, s := range v.Game.Seats {
			status := ""
			switch {
			case s.Folded:
				status = "folded"
			case s.AllIn:
				status = "all-in"
			case s.PlayerID == v.Game.CurrentPlayerID:
				status = "to act"
			}
			name := s.Name
			if name == "" {
				name = s.PlayerID
			}
			if s.PlayerID == v.Identity.PlayerID && len(s.HoleCards) > 0 {
				name += " [" + strings.Join(s.HoleCards, " ") + "]"
			}
			rows = append(rows, []string{name, strconv.Itoa(s.Chips), strconv.Itoa(s.CommittedBet), status})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		if v.IsPlayerTurn {
			pterm.Info.Println("it is your turn")
		}
	}

	if v.Winner != nil {
		pterm.Success.Printfln("%s wins %d with %s", v.Winner.Name, v.Winner.AmountWon, v.Winner.HandRank)
	}

	if v.Lobby == nil && v.Game == nil {
		pterm.Println("not in a lobby")
	}
}
