package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/types"
)

// App returns the ferry CLI application.
func App(commit string) *cli.App {
	return &cli.App{
		Name:    "ferry",
		Usage:   "Client for a local messaging automation engine",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Commands: []*cli.Command{
			StatusCommand(),
			ContactsCommand(),
			DBsCommand(),
			TablesCommand(),
			QueryCommand(),
			MembersCommand(),
			SendRichCommand(),
			RecoverCommand(),
			ListenCommand(),
			VersionCommand(commit),
		},
	}
}
