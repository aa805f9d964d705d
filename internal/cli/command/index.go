package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/output"
	"github.com/yndnr/acctledger/internal/storage"
)

// IndexCommand returns the alias index subcommand group.
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Alias index maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "Check that every alias index entry resolves to its account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "repair",
						Usage: "Delete dangling and stale entries",
					},
				},
				Action: indexVerify,
			},
		},
	}
}

func indexVerify(c *cli.Context) error {
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	repair := c.Bool("repair")
	report, err := l.store.VerifyAliasIndex(c.Context, repair)
	if err != nil {
		return err
	}
	if report.Issues == nil {
		report.Issues = []storage.AliasIssue{}
	}

	if rt.format == output.FormatTable {
		summary := &output.Table{}
		summary.SetHeaders("CHECKED", "ISSUES", "REPAIRED")
		summary.AddRow(fmt.Sprint(report.Checked), fmt.Sprint(len(report.Issues)), fmt.Sprint(report.Repaired))
		if err := rt.print(summary); err != nil {
			return err
		}
		if len(report.Issues) > 0 {
			fmt.Fprintln(rt.out)
			if err := rt.print(report.Issues); err != nil {
				return err
			}
		}
	} else if err := rt.print(report); err != nil {
		return err
	}

	if !repair && len(report.Issues) > 0 {
		return fmt.Errorf("alias index has %d unresolved entries (run with --repair to remove them)", len(report.Issues))
	}
	return nil
}
