package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	// PrintConfig prints the expanded configuration with defaults applied
	// and env vars resolved.
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("%s: OK\n", c.Config)
	if c.PrintConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	}
	return nil
}
