package command

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/core/domain"
)

// TransferCommand returns the transfer subcommand group.
func TransferCommand() *cli.Command {
	flags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Move the allowance of this access key with the balance",
			},
			&cli.BoolFlag{
				Name:  "atomic",
				Usage: "AMOUNT is an integer in atomic units instead of a decimal",
			},
		}
	}

	return &cli.Command{
		Name:    "transfer",
		Aliases: []string{"tx"},
		Usage:   "Move funds on an account",
		Subcommands: []*cli.Command{
			{
				Name:      "credit",
				Usage:     "Add funds (and allowance, with --key)",
				ArgsUsage: "IDENTITY|ALIAS AMOUNT",
				Flags:     flags(),
				Action:    func(c *cli.Context) error { return transfer(c, domain.Credit) },
			},
			{
				Name:      "debit",
				Usage:     "Remove funds (spending allowance, with --key)",
				ArgsUsage: "IDENTITY|ALIAS AMOUNT",
				Flags:     flags(),
				Action:    func(c *cli.Context) error { return transfer(c, domain.Debit) },
			},
		},
	}
}

type transferView struct {
	Mode      string `json:"mode" yaml:"mode"`
	Identity  string `json:"public_key" yaml:"public_key"`
	Amount    uint64 `json:"amount" yaml:"amount" table:"amount"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	Balance   uint64 `json:"balance" yaml:"balance" table:"amount"`
	Allowance uint64 `json:"allowance,omitempty" yaml:"allowance,omitempty" table:"amount"`
	Version   uint64 `json:"version" yaml:"version" table:"wide"`
}

func transfer(c *cli.Context, mode domain.TransferMode) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	amount, err := parseAmount(rt.precision, c.Args().Get(1), c.Bool("atomic"))
	if err != nil {
		return err
	}
	identity, err := l.lookupIdentity(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}

	key := c.String("key")
	if err := l.svc.Transfer(c.Context, identity, amount, mode, key); err != nil {
		return err
	}

	acc, err := l.store.Get(c.Context, identity)
	if err != nil {
		return err
	}
	view := transferView{
		Mode:      mode.String(),
		Identity:  identity,
		Amount:    amount,
		AccessKey: key,
		Balance:   acc.Balance,
		Version:   acc.Version,
	}
	if i, ok := acc.FindAccessKey(key); ok && key != "" {
		view.Allowance = acc.AccessKeys[i].Allowance
	}
	return rt.print(view)
}

// parseAmount reads a decimal amount, or an atomic integer when atomic is set.
func parseAmount(p domain.Precision, s string, atomic bool) (uint64, error) {
	if !atomic {
		return p.ParseAtomic(s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument.WithDetailsf("atomic amount %q", s).WithCause(err)
	}
	return v, nil
}
