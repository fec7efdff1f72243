package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tandem/audit"
	"github.com/pithecene-io/tandem/cli/reader"
	"github.com/pithecene-io/tandem/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a persisted session trail.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a persisted session audit trail",
		Subcommands: []*cli.Command{
			inspectTrailCommand(),
			inspectHealthCommand(),
			inspectErrorsCommand(),
			inspectConflictsCommand(),
			inspectRecoveryCommand(),
		},
	}
}

func inspectTrailCommand() *cli.Command {
	return &cli.Command{
		Name:      "trail",
		Usage:     "Inspect a trail file (summary and record counts)",
		ArgsUsage: "<trail-file>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectTrailAction,
	}
}

func inspectTrailAction(c *cli.Context) error {
	trail, r, err := loadTrail(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("trail_summary", trail)
	}

	return r.Render(trail.Summary)
}

func inspectHealthCommand() *cli.Command {
	return &cli.Command{
		Name:      "health",
		Usage:     "Inspect the health transitions of a trail",
		ArgsUsage: "<trail-file>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectHealthAction,
	}
}

func inspectHealthAction(c *cli.Context) error {
	trail, r, err := loadTrail(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("trail_health", trail)
	}

	return r.Render(trail.Summary.Transitions)
}

func inspectErrorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "errors",
		Usage:     "Inspect the error records of a trail",
		ArgsUsage: "<trail-file>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectKindAction(audit.KindError),
	}
}

func inspectConflictsCommand() *cli.Command {
	return &cli.Command{
		Name:      "conflicts",
		Usage:     "Inspect the conflict records of a trail",
		ArgsUsage: "<trail-file>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectKindAction(audit.KindConflict),
	}
}

func inspectRecoveryCommand() *cli.Command {
	return &cli.Command{
		Name:      "recovery",
		Usage:     "Inspect the recovery records of a trail",
		ArgsUsage: "<trail-file>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectKindAction(audit.KindRecovery),
	}
}

// inspectKindAction renders all records of one kind from a trail.
func inspectKindAction(kind audit.Kind) cli.ActionFunc {
	return func(c *cli.Context) error {
		trail, r, err := loadTrail(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for record listings", 1)
		}

		records := trail.ByKind(kind)
		if records == nil {
			records = []audit.Record{}
		}
		return r.Render(records)
	}
}

// loadTrail parses the trail file argument and builds a renderer.
func loadTrail(c *cli.Context) (*reader.Trail, *render.Renderer, error) {
	if c.NArg() < 1 {
		return nil, nil, cli.Exit("trail file required", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, err
	}

	trail, err := reader.ReadTrail(c.Args().First())
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	return trail, r, nil
}
