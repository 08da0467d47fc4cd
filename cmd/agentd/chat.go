package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/agent"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/runtime"
)

// ChatCmd runs an interactive loop: one agent turn per input line.
type ChatCmd struct {
	SystemPrompt string `name:"system-prompt" help:"System prompt for the session."`
	Mode         string `help:"Agent mode (react, codeact)." default:"react" enum:"react,codeact"`
}

func (c *ChatCmd) Run(cli *CLI) error {
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

	a, err := rt.Agent(agent.Mode(c.Mode), c.SystemPrompt)
	if err != nil {
		return err
	}

	fmt.Println("Type a message, or 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		result, err := a.Turn(context.Background(), line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}
		fmt.Println(result.Reply)
	}
	return scanner.Err()
}
