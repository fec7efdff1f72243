package cmd

import (
	"github.com/urfave/cli/v2"
)

// StatsCommand returns the stats command.
// Stats aggregates a trail file into per-kind record counts.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show aggregate record counts for a session trail",
		ArgsUsage: "<trail-file>",
		Flags:     TUIReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	trail, r, err := loadTrail(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("trail_stats", trail)
	}

	return r.Render(trail.Summary.Counts)
}
