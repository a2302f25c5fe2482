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
	"strings"
	"syscall"
	"time"

	"github.com/kingrea/jobprep/internal/config"
	"github.com/kingrea/jobprep/internal/crew"
	"github.com/kingrea/jobprep/internal/logbook"
	"github.com/kingrea/jobprep/internal/logging"
	"github.com/kingrea/jobprep/internal/workflow/engine"
	"github.com/kingrea/jobprep/plugins"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("crew-runner", flag.ContinueOnError)
	flags.SetOutput(stderr)
	projectDir := flags.String("project", "", "path to the project directory (defaults to cwd)")
	jobURL := flags.String("job-url", "", "job posting URL")
	githubURL := flags.String("github", "", "candidate GitHub URL")
	writeup := flags.String("writeup", "", "personal write-up text")
	writeupFile := flags.String("writeup-file", "", "path to a file holding the personal write-up")
	resumePath := flags.String("resume", "", "path to the resume markdown file")
	timeout := flags.Duration("timeout", 0, "abort the run after this long (0 disables)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	inputs := crew.RunInputs{
		JobPostingURL:   strings.TrimSpace(*jobURL),
		GitHubURL:       strings.TrimSpace(*githubURL),
		PersonalWriteup: *writeup,
	}
	if path := strings.TrimSpace(*writeupFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read write-up: %w", err)
		}
		inputs.PersonalWriteup = string(data)
	}
	if path := strings.TrimSpace(*resumePath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read resume: %w", err)
		}
		inputs.Resume = string(data)
	}
	if err := inputs.Validate(); err != nil {
		return err
	}

	project := *projectDir
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitStateDir(absoluteProject); err != nil {
		return fmt.Errorf("init %s: %w", config.StateDirName, err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(absoluteProject)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logger.Close()
	overrides, err := plugins.LoadOverrides(cfg)
	if err != nil {
		return fmt.Errorf("load agent overrides: %w", err)
	}
	opts := []crew.Option{
		crew.WithOverrides(overrides...),
		crew.WithLogger(logger),
		crew.WithObserver(func(ev engine.NodeEvent) {
			fmt.Fprintf(stderr, "[%s] %s %s\n", ev.At.Format(time.Kitchen), ev.NodeID, ev.Kind)
		}),
	}
	if lb, err := logbook.Open(cfg.LogsDir()); err == nil {
		opts = append(opts, crew.WithJournal(lb))
	}
	c, err := crew.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("build crew: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	result, err := c.Kickoff(ctx, inputs)
	if err != nil {
		logger.Printf("crew-runner: run failed: %v", err)
		return fmt.Errorf("An error occurred: %w", err)
	}
	fmt.Fprintf(stdout, "Run %s complete\n", result.RunID)
	for _, item := range result.Artifacts {
		fmt.Fprintf(stdout, "\n## %s (%s)\n\n", item.Ref.Name, item.Path)
		if warning := item.Warning(); warning != "" {
			fmt.Fprintln(stdout, warning)
			continue
		}
		fmt.Fprintln(stdout, item.Content)
	}
	return nil
}
