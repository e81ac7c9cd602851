package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/corvandale/leadctl/internal/api"
	"github.com/corvandale/leadctl/internal/auth"
	"github.com/corvandale/leadctl/internal/config"
	"github.com/corvandale/leadctl/internal/database"
	"github.com/corvandale/leadctl/internal/leads"
	"github.com/corvandale/leadctl/internal/logging"
	"github.com/corvandale/leadctl/internal/session"
)

const usage = `leadctl - terminal client for the lead pipeline

Usage: leadctl <command> [flags]

Auth:
  login      -email <addr> [-password <pw>]
  register   -username <u> -email <addr> -first <name> -last <name> [-password <pw>]
  logout
  whoami
  verify

Leads:
  board      [-search <term>] [-source <src>] [-sort <field>] [-order asc|desc]
  leads
  create     -name <n> -email <addr> -phone <p> -source <src> [-notes <text>]
  move       -id <n> -status new_lead|lead_sent|deal_done
  edit       -id <n> [-name ...] [-email ...] [-phone ...] [-source ...] [-notes ...]
  delete     -id <n> [-yes]
  stats
  seed

Account:
  profile    [-first ...] [-last ...] [-email ...] [-username ...]
  passwd     -old <pw> -new <pw>

Data:
  export     -out <file> -passphrase <pw>
  import     -in <file> -passphrase <pw>

Environment: LEADCTL_API_URL, LEADCTL_STATE_DIR, LEADCTL_TIMEOUT,
LEADCTL_LOG_LEVEL, LEADCTL_PASSPHRASE (also read from an optional .env file).
`

// app is the composition root: one explicitly constructed client, store,
// controller, and board; no package-level singletons.
type app struct {
	cfg      config.Config
	client   *api.Client
	sessions *session.Store
	auth     *auth.Controller
	board    *leads.Board
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	if command == "help" || command == "-h" || command == "--help" {
		fmt.Print(usage)
		return
	}

	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := a.run(ctx, command, args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg config.Config) (*app, func(), error) {
	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := database.Open(filepath.Join(cfg.StateDir, "state.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}

	secret := cfg.Passphrase
	if secret == "" {
		secret, err = session.MachineKey(filepath.Join(cfg.StateDir, "state.key"))
		if err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	sessions := session.NewStore(db, secret)
	client := api.New(cfg.APIBaseURL, sessions, api.WithTimeout(cfg.RequestTimeout))
	controller := auth.NewController(client, sessions)

	if err := controller.Rehydrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	a := &app{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		auth:     controller,
		board:    leads.NewBoard(client),
	}
	return a, func() { db.Close() }, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "verify":
		return a.cmdVerify(ctx)
	case "board":
		return a.cmdBoard(ctx, args)
	case "leads":
		return a.cmdLeads(ctx)
	case "create":
		return a.cmdCreate(ctx, args)
	case "move":
		return a.cmdMove(ctx, args)
	case "edit":
		return a.cmdEdit(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "stats":
		return a.cmdStats(ctx)
	case "seed":
		return a.cmdSeed(ctx)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "passwd":
		return a.cmdPasswd(ctx, args)
	case "export":
		return a.cmdExport(ctx, args)
	case "import":
		return a.cmdImport(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
