package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/output"
	"github.com/yndnr/acctledger/internal/config"
	"github.com/yndnr/acctledger/internal/infra/buildinfo"
	"github.com/yndnr/acctledger/internal/infra/confloader"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the merged configuration (defaults < file < env < flags)",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a configuration file",
				ArgsUsage: "FILE",
				Action:    configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	// Nested sections do not fit a table.
	if rt.format == output.FormatTable {
		return (&output.YAMLFormatter{}).Format(rt.out, rt.cfg)
	}
	return rt.print(rt.cfg)
}

func configValidate(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	cfg := config.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(rt.out, "✓ Configuration is valid: %s\n", path)
	return nil
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			return rt.print(buildinfo.Get())
		},
	}
}
