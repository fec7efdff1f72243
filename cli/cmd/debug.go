package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tandem/cli/config"
	"github.com/pithecene-io/tandem/cli/render"
	"github.com/pithecene-io/tandem/ipc"
)

// DebugCommand returns the debug command with subcommands.
// Debug tooling is read-only and never hosts a session.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Debug utilities (config validation, frame stream decoding)",
		Subcommands: []*cli.Command{
			debugConfigCommand(),
			debugFramesCommand(),
		},
	}
}

func debugConfigCommand() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Load and validate a tandem.yaml file, printing the effective config",
		ArgsUsage: "<config-file>",
		Flags:     ReadOnlyFlags(),
		Action:    debugConfigAction,
	}
}

func debugConfigAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("config file required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Surface conversion errors here rather than at session start.
	if _, err := cfg.Engine.AvailableChannels(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 1)
	}
	if _, err := cfg.Engine.ConformanceLevel(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 1)
	}

	return r.Render(cfg)
}

func debugFramesCommand() *cli.Command {
	return &cli.Command{
		Name:      "frames",
		Usage:     "Decode a channel event frame stream to readable records ('-' for stdin)",
		ArgsUsage: "<frame-file>",
		Flags:     ReadOnlyFlags(),
		Action:    debugFramesAction,
	}
}

// FrameDump is the decoded view of one stream frame.
type FrameDump struct {
	Index int    `json:"index"`
	Frame any    `json:"frame,omitempty"`
	Error string `json:"error,omitempty"`
}

func debugFramesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("frame file required (use '-' for stdin)", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open frame file: %v", err), 1)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	dumps, err := dumpFrames(in)
	if err != nil {
		return cli.Exit(fmt.Sprintf("frame stream: %v", err), 1)
	}
	return r.Render(dumps)
}

// dumpFrames decodes frames until EOF or a fatal frame error.
// Non-fatal decode errors are recorded inline so a stream with one bad
// frame still dumps the rest.
func dumpFrames(in io.Reader) ([]FrameDump, error) {
	decoder := ipc.NewFrameDecoder(in)
	dumps := []FrameDump{}

	for i := 0; ; i++ {
		payload, err := decoder.ReadFrame()
		if err == io.EOF {
			return dumps, nil
		}
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return dumps, err
			}
			dumps = append(dumps, FrameDump{Index: i, Error: err.Error()})
			continue
		}

		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			dumps = append(dumps, FrameDump{Index: i, Error: err.Error()})
			continue
		}
		dumps = append(dumps, FrameDump{Index: i, Frame: frame})
	}
}
