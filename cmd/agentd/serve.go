package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/agent"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/runtime"
)

// ServeCmd runs the composed runtime headless: the scheduler fires
// configured tasks and trigger-tool callbacks run agent turns.
type ServeCmd struct {
	SystemPrompt string `name:"system-prompt" help:"System prompt for triggered turns."`
	Watch        bool   `help:"Watch the config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer rt.Close()

	a, err := rt.Agent(agent.ModeReact, c.SystemPrompt)
	if err != nil {
		return err
	}
	rt.SetTriggerHandler(func(ctx context.Context, prompt string) error {
		result, err := a.Turn(ctx, prompt)
		if err != nil {
			return err
		}
		slog.Info("Triggered turn finished", "reply", result.Reply)
		return nil
	})

	if err := rt.Start(); err != nil {
		return err
	}

	if c.Watch {
		watcher, err := config.NewWatcher(cli.Config, func(next *config.Config) {
			slog.Info("Config changed; restart to apply", "path", cli.Config)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	slog.Info("Runtime ready", "config", cli.Config)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("Shutting down...")
	return nil
}
