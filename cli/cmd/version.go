package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version     string `json:"version" yaml:"version"`
	WireVersion string `json:"wire_version" yaml:"wire_version"`
	Commit      string `json:"commit" yaml:"commit"`
}

// VersionCommand returns the version command.
// It must not contact the engine.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if err := rejectTUI(c); err != nil {
			return err
		}

		return r.Render(VersionResponse{
			Version:     types.Version,
			WireVersion: types.WireVersion,
			Commit:      commit,
		})
	}
}
