package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/output"
	"github.com/yndnr/acctledger/internal/storage/snapshot"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Ledger backup and restore",
		Subcommands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Write a snapshot of every account",
				Action: backupCreate,
			},
			{
				Name:      "restore",
				Usage:     "Write every account of a backup back into the ledger",
				ArgsUsage: "[BACKUP_ID|FILE]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Confirm overwriting accounts present in the backup",
					},
				},
				Action: backupRestore,
			},
			{
				Name:   "list",
				Usage:  "List backups, oldest first",
				Action: backupList,
			},
		},
	}
}

// spinner animates on stderr for table output only.
func (rt *runtime) spinner(message string) *output.Spinner {
	s := output.NewSpinner(rt.errOut, message)
	if rt.format == output.FormatTable {
		s.Start()
	}
	return s
}

func backupCreate(c *cli.Context) error {
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	spin := rt.spinner("Creating backup...")
	info, err := l.engine.CreateBackup(c.Context)
	if err != nil {
		spin.Fail("backup failed")
		return err
	}
	spin.Stop()
	return rt.print(info)
}

type restoreView struct {
	Source   string `json:"source" yaml:"source"`
	Restored int    `json:"restored" yaml:"restored"`
}

func backupRestore(c *cli.Context) error {
	if c.NArg() > 1 {
		return fmt.Errorf("restore: expected at most one BACKUP_ID or FILE")
	}
	if !c.Bool("yes") {
		return fmt.Errorf("restore overwrites accounts present in the backup; pass --yes to confirm")
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	source := c.Args().First()
	spin := rt.spinner("Restoring backup...")
	restored, err := l.engine.Restore(c.Context, source)
	if err != nil {
		spin.Fail(fmt.Sprintf("restored %d accounts with errors", restored))
		return err
	}
	spin.Stop()

	if source == "" {
		source = "latest"
	}
	return rt.print(restoreView{Source: source, Restored: restored})
}

func backupList(c *cli.Context) error {
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	infos, err := l.engine.ListBackups()
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []*snapshot.Info{}
	}
	return rt.print(infos)
}
