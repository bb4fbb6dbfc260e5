package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

func routerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "router",
		Aliases: []string{"r"},
		Usage:   "Router address, or 'farm' / 'strategy' for the deployed routers",
		Value:   "farm",
	}
}

func GetFacetCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "facet",
		Aliases: []string{"fa"},
		Usage:   "Inspect and cut the facets routed by a diamond",
		Before:  checkDeployed,
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the facets of a router and how many functions each serves",
				Action:  FacetList,
				Flags:   []cli.Flag{routerFlag()},
			},
			{
				Name:    "selectors",
				Aliases: []string{"s"},
				Usage:   "List the functions a router sends to one facet",
				Action:  FacetSelectors,
				Flags: []cli.Flag{
					routerFlag(),
					&cli.StringFlag{
						Name:     "facet",
						Usage:    "Facet address",
						Required: true,
					},
				},
			},
			{
				Name:   "cut",
				Usage:  "Add, replace or remove functions of a router. Owner only",
				Action: FacetCut,
				Flags: []cli.Flag{
					routerFlag(),
					&cli.StringFlag{
						Name:     "action",
						Usage:    "add, replace or remove",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "facet",
						Usage: "Facet address for add/replace. Must be unset for remove",
					},
					&cli.StringSliceFlag{
						Name:  "selector",
						Usage: "Selector (hex, ie: 0x1a2b3c4d) to cut, can be repeated. add/replace default to every function of the facet",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Don't ask for confirmation before removing functions",
					},
				},
			},
		},
	}
}

// methodLister is implemented by facets built on diamond.FacetBase.
type methodLister interface {
	Methods() []method.Method
}

// methodNames maps the selectors of the code at addr to their signatures, if the code can describe itself.
func methodNames(c *chain.Chain, addr types.Address) map[method.Selector]string {
	names := map[method.Selector]string{}
	code, found := c.CodeAt(addr)
	if !found {
		return names
	}
	if lister, ok := code.(methodLister); ok {
		for _, m := range lister.Methods() {
			names[m.Selector()] = m.Signature()
		}
	}
	return names
}

func FacetList(ctx context.Context, command *cli.Command) error {
	router, err := resolveAddress(command.String("router"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		entries, err := diamond.NewLoupeClient(App.reader(c), router).Facets(ctx)
		if err != nil {
			return err
		}
		out := new(strings.Builder)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Facet\tKind\tFunctions\t")
		for _, entry := range entries {
			kind := "(no code)"
			if code, found := c.CodeAt(entry.Facet); found {
				kind = code.Kind()
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t\n", entry.Facet, kind, len(entry.Selectors))
		}
		tw.Flush()
		fmt.Print(out.String())
		return nil
	})
}

func FacetSelectors(ctx context.Context, command *cli.Command) error {
	router, err := resolveAddress(command.String("router"))
	if err != nil {
		return err
	}
	facet, err := resolveAddress(command.String("facet"))
	if err != nil {
		return err
	}
	return App.withChain(ctx, func(c *chain.Chain) error {
		sels, err := diamond.NewLoupeClient(App.reader(c), router).FacetFunctionSelectors(ctx, facet)
		if err != nil {
			return err
		}
		if len(sels) == 0 {
			fmt.Printf("%s routes no functions to %s\n", router, facet)
			return nil
		}
		names := methodNames(c, facet)
		for _, sel := range sels {
			fmt.Printf("%s  %s\n", sel, names[sel])
		}
		return nil
	})
}

func FacetCut(ctx context.Context, command *cli.Command) error {
	router, err := resolveAddress(command.String("router"))
	if err != nil {
		return err
	}
	action, err := diamond.ParseCutAction(command.String("action"))
	if err != nil {
		return err
	}
	var facet types.Address
	if name := command.String("facet"); name != "" {
		if facet, err = resolveAddress(name); err != nil {
			return err
		}
	}
	var sels []method.Selector
	rawSels, _ := command.Value("selector").([]string)
	for _, s := range rawSels {
		sel, err := method.ParseSelector(s)
		if err != nil {
			return err
		}
		sels = append(sels, sel)
	}

	return App.withChain(ctx, func(c *chain.Chain) error {
		owner, err := App.sender(c)
		if err != nil {
			return err
		}
		if len(sels) == 0 && action != diamond.Remove {
			code, found := c.CodeAt(facet)
			if !found {
				return fmt.Errorf("%w: %s", diamond.ErrNoCode, facet)
			}
			f, ok := code.(diamond.Facet)
			if !ok {
				return fmt.Errorf("%s holds %s code, not a facet", facet, code.Kind())
			}
			sels = f.Selectors()
		}
		if action == diamond.Remove && !command.Bool("yes") {
			loupe := diamond.NewLoupeClient(owner, router)
			for _, sel := range sels {
				current, err := loupe.FacetAddress(ctx, sel)
				if err != nil {
					return err
				}
				fmt.Printf("removing %s %s (facet %s)\n", sel, methodNames(c, current)[sel], current)
			}
			if _, err := yesNo(fmt.Sprintf("Remove %d functions from %s", len(sels), router)); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					return errors.New("cut cancelled")
				}
				return err
			}
		}
		receipt, err := diamond.NewCutClient(owner, router).DiamondCut(ctx, []diamond.FacetCut{{
			Facet:     facet,
			Action:    action,
			Selectors: sels,
		}}, types.Address{}, nil)
		if err != nil {
			return fmt.Errorf("cut failed: %w", err)
		}
		misc.Infof(App.logger, "cut %s of %d functions applied to %s in block %d", action, len(sels), router, receipt.Block)
		return nil
	})
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
