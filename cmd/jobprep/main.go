// cmd/jobprep/main.go
//
// This is the entry point for the jobprep CLI.
// When you run `jobprep` from any directory, this is what executes.
//
// Flow:
// 1. Handle subcommands (validate-agents)
// 2. Initialize the .jobprep folder in the project directory
// 3. Launch the TUI, or the HTTP server when -serve is set

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
	"github.com/kingrea/jobprep/internal/logbook"
	"github.com/kingrea/jobprep/internal/logging"
	"github.com/kingrea/jobprep/internal/server"
	"github.com/kingrea/jobprep/internal/tui"
	"github.com/kingrea/jobprep/internal/workflow"
	"github.com/kingrea/jobprep/plugins"
)

func main() {
	if handleValidateAgentsCommand() {
		return
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the selected mode. Failures after the trace
// log is open are recorded there before the log is closed.
func run(args []string, stdout io.Writer) (err error) {
	flags := flag.NewFlagSet("jobprep", flag.ContinueOnError)
	projectFlag := flags.String("project", "", "path to the project directory (defaults to cwd)")
	serve := flags.Bool("serve", false, "serve the HTTP API instead of the TUI")
	graph := flags.Bool("graph", false, "print the crew workflow as YAML and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	projectDir, err := resolveProjectDir(*projectFlag)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitStateDir(projectDir); err != nil {
		return fmt.Errorf("initialize %s directory: %w", config.StateDirName, err)
	}

	logger, err := logging.New(projectDir)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Printf("jobprep: %v", err)
		}
		logger.Close()
	}()

	switch {
	case *graph:
		if err := printGraph(projectDir, stdout); err != nil {
			return fmt.Errorf("print workflow: %w", err)
		}
	case *serve:
		if err := runServer(projectDir, logger, stdout); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	default:
		if err := runTUI(projectDir, logger); err != nil {
			return fmt.Errorf("run TUI: %w", err)
		}
	}
	return nil
}

func resolveProjectDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	return filepath.Abs(dir)
}

func runTUI(projectDir string, logger *logging.Logger) error {
	app, err := tui.NewApp(projectDir, tui.WithLogger(logger))
	if err != nil {
		return err
	}
	// Use alternate screen buffer (like vim does)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runServer(projectDir string, logger *logging.Logger, stdout io.Writer) error {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}
	overrides, err := plugins.LoadOverrides(cfg)
	if err != nil {
		return err
	}
	opts := []crew.Option{crew.WithOverrides(overrides...), crew.WithLogger(logger)}
	if lb, err := logbook.Open(cfg.LogsDir()); err == nil {
		opts = append(opts, crew.WithJournal(lb))
	}
	c, err := crew.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(server.SettingsFromConfig(cfg),
		server.WithRunner(c),
		server.WithStore(c.Store()),
		server.WithLogger(logger),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "jobprep API listening on %s\n", srv.BaseURL())
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printGraph(projectDir string, stdout io.Writer) error {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}
	data, err := workflow.MarshalYAML(crew.Definition(cfg))
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}
