// Command agentd runs the code-acting agent runtime.
//
// Usage:
//
//	agentd serve --config config.yaml
//	agentd chat --config config.yaml
//	agentd validate config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	assistantagent "github.com/zk279444107/AssistantAgent-sub002"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Run the agent runtime headless."`
	Chat     ChatCmd     `cmd:"" help:"Interactive chat with the agent."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose, text)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("agentd %s\n", assistantagent.VersionInfo())
	return nil
}

func main() {
	_ = godotenv.Load()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentd"),
		kong.Description("Code-acting agent runtime"),
		kong.UsageOnError(),
	)

	level, _ := logger.ParseLevel(cli.LogLevel)
	logger.Init(level, os.Stderr, cli.LogFormat)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
