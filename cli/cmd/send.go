package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/forge"
)

// ForgeResult is the response for send-rich and recover.
type ForgeResult struct {
	MsgID    string `json:"msg_id" yaml:"msg_id"`
	Receiver string `json:"receiver" yaml:"receiver"`
	Status   string `json:"status" yaml:"status"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SendRichCommand returns the send-rich command.
func SendRichCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-rich",
		Usage:     "Forge a message from raw content and forward it",
		ArgsUsage: "<receiver> <file|->",
		Description: "The content (read from a file, or stdin for -) is written into the " +
			"forgery slot row and forwarded to <receiver> once the engine settles.",
		Flags:  readFlags(),
		Action: sendRichAction,
	}
}

func sendRichAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != 2 {
		return cli.Exit("usage: ferry send-rich <receiver> <file|->", exitFailure)
	}
	receiver := c.Args().Get(0)

	content, err := readContent(c.Args().Get(1), c.App.Reader)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	p, err := s.pipeline(ctx)
	if err != nil {
		return err
	}
	job, err := p.Send(ctx, receiver, content)
	if err != nil {
		return err
	}
	return renderJob(ctx, r, job)
}

// RecoverCommand returns the recover command.
func RecoverCommand() *cli.Command {
	return &cli.Command{
		Name:      "recover",
		Usage:     "Restore the forgery slot from its latest snapshot and forward",
		ArgsUsage: "<receiver>",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "id",
				Usage: "Message id to forward (default: the restored row's id)",
			},
		),
		Action: recoverAction,
	}
}

func recoverAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := rejectTUI(c); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("usage: ferry recover <receiver> [--id <msgid>]", exitFailure)
	}

	var forwardID uint64
	if v := c.String("id"); v != "" {
		forwardID, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid --id %q: %v", v, err), exitFailure)
		}
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	p, err := s.pipeline(ctx)
	if err != nil {
		return err
	}
	job, err := p.Recover(ctx, forwardID, c.Args().First())
	if err != nil {
		return err
	}
	return renderJob(ctx, r, job)
}

// renderJob waits for the forward and renders its outcome. A failed
// forward exits with exitForwardFailed after rendering.
func renderJob(ctx context.Context, r *render.Renderer, job *forge.Job) error {
	waitErr := job.Wait(ctx)

	result := ForgeResult{
		MsgID:    strconv.FormatUint(job.ID, 10),
		Receiver: job.Receiver,
		Status:   "forwarded",
	}
	if waitErr != nil {
		result.Status = "failed"
		result.Error = waitErr.Error()
	}
	if err := r.Render(result); err != nil {
		return err
	}
	if waitErr != nil {
		return cli.Exit("", exitForwardFailed)
	}
	return nil
}

// readContent reads the message body from path, or from stdin for "-".
func readContent(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("read content: %s is empty", path)
	}
	return string(data), nil
}
