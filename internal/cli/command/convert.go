package command

import (
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/core/domain"
)

// ConvertCommand returns the amount conversion subcommand group.
func ConvertCommand() *cli.Command {
	placesFlag := func() cli.Flag {
		return &cli.IntFlag{
			Name:  "decimals",
			Usage: "Decimal places (default: storage.decimal_places)",
			Value: -1,
		}
	}

	return &cli.Command{
		Name:  "convert",
		Usage: "Convert between display and atomic amounts",
		Subcommands: []*cli.Command{
			{
				Name:      "to-atomic",
				Usage:     "Display amount to atomic units",
				ArgsUsage: "AMOUNT",
				Flags: []cli.Flag{
					placesFlag(),
					&cli.BoolFlag{
						Name:  "float",
						Usage: "Multiply as float64 and truncate instead of parsing exactly",
					},
				},
				Action: convertToAtomic,
			},
			{
				Name:      "to-decimal",
				Usage:     "Atomic units to display amount",
				ArgsUsage: "ATOMIC",
				Flags:     []cli.Flag{placesFlag()},
				Action:    convertToDecimal,
			},
		},
	}
}

type conversionView struct {
	Input   string  `json:"input" yaml:"input"`
	Places  int     `json:"decimal_places" yaml:"decimal_places"`
	Atomic  uint64  `json:"atomic" yaml:"atomic"`
	Decimal string  `json:"decimal" yaml:"decimal"`
	Float   float64 `json:"float" yaml:"float" table:"wide"`
}

func conversionPrecision(c *cli.Context) (*runtime, domain.Precision, error) {
	rt, err := getRuntime(c)
	if err != nil {
		return nil, domain.Precision{}, err
	}
	if places := c.Int("decimals"); places >= 0 {
		p, err := domain.NewPrecision(places)
		return rt, p, err
	}
	return rt, rt.precision, nil
}

func convertToAtomic(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, p, err := conversionPrecision(c)
	if err != nil {
		return err
	}

	in := c.Args().First()
	var atomic uint64
	if c.Bool("float") {
		f, perr := strconv.ParseFloat(in, 64)
		if perr != nil {
			return domain.ErrInvalidArgument.WithDetailsf("amount %q", in).WithCause(perr)
		}
		atomic, err = p.ToAtomic(f)
	} else {
		atomic, err = p.ParseAtomic(in)
	}
	if err != nil {
		return err
	}
	return rt.print(newConversion(in, p, atomic))
}

func convertToDecimal(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	rt, p, err := conversionPrecision(c)
	if err != nil {
		return err
	}

	in := c.Args().First()
	atomic, err := parseAmount(p, in, true)
	if err != nil {
		return err
	}
	return rt.print(newConversion(in, p, atomic))
}

func newConversion(in string, p domain.Precision, atomic uint64) conversionView {
	return conversionView{
		Input:   in,
		Places:  p.Places(),
		Atomic:  atomic,
		Decimal: p.FormatDecimal(atomic),
		Float:   p.ToDecimal(atomic),
	}
}
