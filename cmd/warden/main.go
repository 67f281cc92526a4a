// Command warden runs the response command interpreter: an HTTP
// service that parses bracket-tag commands out of model output and
// executes them against a workspace under per-agent permissions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"warden/pkg/agent"
	"warden/pkg/api"
	"warden/pkg/bus"
	"warden/pkg/command"
	"warden/pkg/config"
	"warden/pkg/executor"
	"warden/pkg/logging"
	"warden/pkg/memory"
	"warden/pkg/model"
	"warden/pkg/notify"
	"warden/pkg/permission"
	"warden/pkg/storage"
	"warden/pkg/stream"
	"warden/pkg/terminal"
	"warden/pkg/workspace"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to warden.yaml")
		mode       = flag.String("mode", "serve", "serve | exec")
		wsRoot     = flag.String("workspace", "", "workspace root (overrides config)")
		agentID    = flag.String("agent", "local", "agent identity for exec mode")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}
	if *wsRoot != "" {
		cfg.Workspace.Root = *wsRoot
	}

	switch *mode {
	case "serve":
		err = runServe(cfg)
	case "exec":
		err = runExec(cfg, *agentID)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cfg *config.Config) error {
	logger, err := logging.NewLogger(cfg.Logging.Dir)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var ws *workspace.Workspace
	if cfg.Workspace.Root != "" {
		ws, err = workspace.New(cfg.Workspace.Root)
		if err != nil {
			return err
		}
	}

	var messageBus bus.MessageBus
	if cfg.Bus.NATSURL != "" {
		messageBus, err = bus.NewNATSBus(cfg.Bus.NATSURL)
		if err != nil {
			return err
		}
	} else {
		messageBus = bus.NewMemoryBus()
	}
	defer messageBus.Close()

	notifier := notify.NewBusNotifier(messageBus, logger)

	// Operator-log entries (search results, diffs, substitutions) land
	// in the store so GET /agents/{id}/events can replay them.
	opSub, err := notify.PersistOperatorLog(context.Background(), messageBus, store, logger)
	if err != nil {
		return err
	}
	defer opSub.Unsubscribe()

	workDir := cfg.Workspace.Root
	if workDir == "" {
		workDir = "."
	}
	term, err := terminal.NewShellTerminal(cfg.Executor.TerminalName, workDir,
		filepath.Join(cfg.Logging.Dir, "terminal.log"))
	if err != nil {
		return err
	}
	defer term.Close()

	provider := model.NewOpenAIProvider(os.Getenv(cfg.Model.APIKeyEnv), cfg.Model.BaseURL)

	svc := agent.NewService(agent.Options{
		Provider:  provider,
		Monitor:   stream.NewMonitor(cfg.Stream, logger),
		Scanner:   command.NewScanner(cfg.PlaceholderEnabled()),
		Executor:  executor.New(ws, permission.NewGuard(), term, notifier, logger, cfg.Executor.TaskCap),
		Manager:   memory.NewManager(ws, cfg.Model.MaxTokens, logger),
		Store:     store,
		Workspace: ws,
		Notifier:  notifier,
		Logger:    logger,
		ModelCfg:  model.Config{Model: cfg.Model.Name, MaxTokens: cfg.Model.MaxTokens},
	})

	server := api.NewServer(api.ServerConfig{
		Address: cfg.API.Bind,
		Service: svc,
		Store:   store,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Drain in-flight requests first so the flush sees quiescent
		// memory records.
		shutdownErr := server.Shutdown(shutdownCtx)
		if err := svc.Flush(shutdownCtx); err != nil {
			logger.Error(logging.CategoryStorage, "flush_failed", "", "could not flush memory records", map[string]any{"error": err.Error()})
		}
		return shutdownErr
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runExec scans a response text from stdin and executes it against the
// workspace with every capability granted. Meant for grammar debugging.
func runExec(cfg *config.Config, agentID string) error {
	if cfg.Workspace.Root == "" {
		return workspace.ErrNoWorkspace
	}
	ws, err := workspace.New(cfg.Workspace.Root)
	if err != nil {
		return err
	}

	logger := logging.NewNopLogger()
	notifier := notify.NewBusNotifier(nil, logger)
	term, err := terminal.NewShellTerminal(cfg.Executor.TerminalName, cfg.Workspace.Root, "")
	if err != nil {
		return err
	}
	defer term.Close()

	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	scanner := command.NewScanner(cfg.PlaceholderEnabled())
	result := scanner.Scan(string(text))
	for _, note := range result.Notes {
		fmt.Fprintln(os.Stderr, "note:", note)
	}
	if result.Truncated {
		fmt.Fprintln(os.Stderr, "warning: response contains unterminated command tags")
	}

	perms := permission.Allow(
		permission.CapReadFiles,
		permission.CapWriteFiles,
		permission.CapExecuteCommands,
		permission.CapGitOperations,
		permission.CapNetworkAccess,
	)
	exec := executor.New(ws, permission.NewGuard(), term, notifier, logger, cfg.Executor.TaskCap)
	for _, rec := range exec.Execute(context.Background(), agentID, perms, result.Invocations) {
		status := "ok"
		switch {
		case rec.Failed:
			status = "failed"
		case rec.Warning:
			status = "warning"
		}
		fmt.Printf("[%s] %s\n", status, rec.Result)
	}
	return nil
}
