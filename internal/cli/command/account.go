package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/output"
	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/pkg/token"
)

// accountView is the printed form of an account.
type accountView struct {
	Identity   string          `json:"public_key" yaml:"public_key"`
	Alias      string          `json:"username" yaml:"username"`
	Balance    uint64          `json:"balance" yaml:"balance" table:"amount"`
	Locked     uint64          `json:"locked" yaml:"locked" table:"amount"`
	Level      uint8           `json:"level" yaml:"level"`
	Version    uint64          `json:"version" yaml:"version" table:"wide"`
	AccessKeys []accessKeyView `json:"access_keys" yaml:"access_keys" table:"-"`
}

type accessKeyView struct {
	Key       string `json:"key" yaml:"key"`
	Allowance uint64 `json:"allowance" yaml:"allowance" table:"amount"`
	Code      string `json:"code" yaml:"code"`
}

func newAccountView(acc *domain.Account) accountView {
	v := accountView{
		Identity: acc.Identity,
		Alias:    acc.Alias,
		Balance:  acc.Balance,
		Locked:   acc.Locked,
		Level:    acc.Level,
		Version:  acc.Version,
	}
	for _, k := range acc.AccessKeys {
		v.AccessKeys = append(v.AccessKeys, accessKeyView(k))
	}
	return v
}

// printAccount prints an account. Tables get a second table of keys.
func (rt *runtime) printAccount(acc *domain.Account) error {
	view := newAccountView(acc)
	if rt.format != output.FormatTable {
		return rt.print(view)
	}
	if err := rt.print(view); err != nil {
		return err
	}
	fmt.Fprintln(rt.out)
	return rt.print(view.AccessKeys)
}

// AccountCommand returns the account subcommand group.
func AccountCommand() *cli.Command {
	return &cli.Command{
		Name:    "account",
		Aliases: []string{"acct"},
		Usage:   "Account management",
		Subcommands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "Load an account, creating it if it does not exist",
				ArgsUsage: "IDENTITY",
				Action:    accountOpen,
			},
			{
				Name:      "show",
				Usage:     "Show an account by identity or alias",
				ArgsUsage: "IDENTITY|ALIAS",
				Action:    accountShow,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve an alias through the alias index",
				ArgsUsage: "ALIAS",
				Action:    accountResolve,
			},
			{
				Name:  "list",
				Usage: "List stored accounts",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of accounts (0 = all)",
					},
				},
				Action: accountList,
			},
		},
	}
}

func accountOpen(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	acc, err := l.svc.OpenOrCreate(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return rt.printAccount(acc)
}

func accountShow(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	acc, err := l.svc.Lookup(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return rt.printAccount(acc)
}

type resolveView struct {
	Alias    string `json:"username" yaml:"username"`
	Identity string `json:"public_key" yaml:"public_key"`
	IndexKey string `json:"index_key" yaml:"index_key" table:"wide"`
}

func accountResolve(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	alias := c.Args().First()
	acc, err := l.store.GetByAlias(c.Context, alias)
	if err != nil {
		return err
	}
	return rt.print(resolveView{
		Alias:    alias,
		Identity: acc.Identity,
		IndexKey: l.store.AliasKey(alias),
	})
}

func accountList(c *cli.Context) error {
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	limit := c.Int("limit")
	views := []accountView{}
	err = l.store.Scan(c.Context, func(acc *domain.Account) bool {
		views = append(views, newAccountView(acc))
		return limit <= 0 || len(views) < limit
	})
	if err != nil {
		return err
	}
	return rt.print(views)
}

// AliasCommand returns the alias subcommand group.
func AliasCommand() *cli.Command {
	return &cli.Command{
		Name:  "alias",
		Usage: "Alias management",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Assign an alias to an account",
				ArgsUsage: "IDENTITY ALIAS",
				Action:    aliasSet,
			},
		},
	}
}

func aliasSet(c *cli.Context) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	acc, err := l.store.Get(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}
	if err := l.svc.SetAlias(c.Context, acc, c.Args().Get(1)); err != nil {
		return err
	}
	return rt.printAccount(acc)
}

// KeyCommand returns the access key subcommand group.
func KeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "Access key management",
		Subcommands: []*cli.Command{
			{
				Name:      "grant",
				Usage:     "Grant an access key with zero allowance (fund it with transfer credit --key)",
				ArgsUsage: "IDENTITY KEY",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "code",
						Usage: "Permission descriptor stored with the key",
					},
				},
				Action: keyGrant,
			},
		},
	}
}

func keyGrant(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return fmt.Errorf("%s: expected %s, got %d argument(s)", c.Command.Name, c.Command.ArgsUsage, c.NArg())
	}
	rt, l, err := openLedger(c)
	if err != nil {
		return err
	}

	key := c.Args().Get(1)
	if key == "" {
		if key, err = token.Generate(); err != nil {
			return fmt.Errorf("generate access key: %w", err)
		}
	}

	acc, err := l.store.Get(c.Context, c.Args().Get(0))
	if err != nil {
		return err
	}
	if err := l.svc.GrantAccessKey(c.Context, acc, c.String("code"), key); err != nil {
		return err
	}
	return rt.printAccount(acc)
}

// lookupIdentity resolves an identity or alias to an identity.
func (l *ledger) lookupIdentity(ctx context.Context, identityOrAlias string) (string, error) {
	acc, err := l.svc.Lookup(ctx, identityOrAlias)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.ErrAccountNotFound.WithDetails(identityOrAlias)
		}
		return "", err
	}
	return acc.Identity, nil
}
