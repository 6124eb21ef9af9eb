// Package cmd provides CLI commands for the ferry binary.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitFailure           = 1
	exitEngineUnavailable = 2
	exitForwardFailed     = 3
)

// Shared output flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for status and members.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (status, members only)",
	}
)

// Engine connection flags. Each overrides the matching config value.
var (
	// ConfigFlag points at a ferry.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ferry.yaml",
		EnvVars: []string{"FERRY_CONFIG"},
	}

	// HostFlag overrides engine.host.
	HostFlag = &cli.StringFlag{
		Name:    "host",
		Usage:   "Engine host",
		EnvVars: []string{"FERRY_HOST"},
	}

	// PortFlag overrides engine.port.
	PortFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "Engine command port (push port is port+1)",
		EnvVars: []string{"FERRY_PORT"},
	}

	// PushPortFlag overrides engine.push_port.
	PushPortFlag = &cli.IntFlag{
		Name:    "push-port",
		Usage:   "Engine push port (default: port+1)",
		EnvVars: []string{"FERRY_PUSH_PORT"},
	}

	// LogLevelFlag overrides log_level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// ReadOnlyFlags returns the shared output flags.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// EngineFlags returns the flags every engine-facing command accepts.
func EngineFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		HostFlag,
		PortFlag,
		PushPortFlag,
		LogLevelFlag,
	}
}

// readFlags returns engine and output flags for read commands.
func readFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(EngineFlags(), ReadOnlyFlags()...)
	return append(flags, extra...)
}

// rejectTUI fails commands that have no interactive view.
func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit(fmt.Sprintf("--tui is not supported for %s command", c.Command.Name), exitFailure)
	}
	return nil
}
