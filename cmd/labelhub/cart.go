// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/labelhub/internal/cart"
	"github.com/holomush/labelhub/internal/xdg"
)

// NewCartCmd creates the cart subcommand. Positions shown by "cart list"
// start at 1.
func NewCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local label cart",
		Long: `Manage the label cart stored on this machine. The cart survives
restarts; the last write wins when several processes edit it.`,
	}
	cmd.PersistentFlags().String("cart-file", "", "cart file (default: XDG_DATA_HOME/labelhub/cart.json)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openCartStorage(cmd)
			if err != nil {
				return err
			}
			s, err := cart.Load(st)
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), s)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateCart(cmd, func(s cart.State) (cart.State, error) {
				return cart.Add(s, strings.Join(args, " "))
			})
		},
	})

	qty := &cobra.Command{
		Use:   "qty POSITION QUANTITY",
		Short: "Set the quantity of a label",
		Long: `Set the quantity of a label. A quantity that is not a positive
number is stored as 1. Put -- before a negative quantity so it is not
read as a flag.`,
		Example: "  labelhub cart qty 2 5\n  labelhub cart qty 2 -- -5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return updateCart(cmd, func(s cart.State) (cart.State, error) {
				return cart.SetQuantity(s, index, args[1])
			})
		},
	}
	qty.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return oops.Code("USAGE").
			With("hint", "put -- before a negative quantity").
			Wrapf(err, "qty takes POSITION QUANTITY; use -- before a negative quantity")
	})
	cmd.AddCommand(qty)

	cmd.AddCommand(&cobra.Command{
		Use:   "color POSITION COLOR",
		Short: "Set the colour of a label",
		Long:  "Set the colour of a label. COLOR is #rrggbb; the palette is: " + strings.Join(cart.Palette, " "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return updateCart(cmd, func(s cart.State) (cart.State, error) {
				return cart.SetColor(s, index, args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "rm POSITION",
		Aliases: []string{"delete"},
		Short:   "Remove a label",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return updateCart(cmd, func(s cart.State) (cart.State, error) {
				return cart.Delete(s, index)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return updateCart(cmd, func(cart.State) (cart.State, error) {
				return cart.State{}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "preview",
		Short: "Show one tile per label unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openCartStorage(cmd)
			if err != nil {
				return err
			}
			s, err := cart.Load(st)
			if err != nil {
				return err
			}
			for _, tile := range cart.PreviewTiles(s) {
				cmd.Printf("[%s] %s\n", tile.Color, tile.Text)
			}
			return nil
		},
	})

	return cmd
}

// openCartStorage resolves the cart file from --cart-file, cart.file in the
// config file, or the XDG data directory.
func openCartStorage(cmd *cobra.Command) (*cart.FileStorage, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	path := cfg.Cart.File
	if path == "" {
		path, err = xdg.CartFile()
		if err != nil {
			return nil, err
		}
	}
	return cart.NewFileStorage(path), nil
}

// updateCart loads the cart, applies fn and saves the result.
func updateCart(cmd *cobra.Command, fn func(cart.State) (cart.State, error)) error {
	st, err := openCartStorage(cmd)
	if err != nil {
		return err
	}
	s, err := cart.Load(st)
	if err != nil {
		return err
	}
	next, err := fn(s)
	if err != nil {
		return err
	}
	if err := cart.Save(st, next); err != nil {
		return err
	}
	cmd.Println(cart.Badge(next))
	return nil
}

// parsePosition converts a 1-based position to an index.
func parsePosition(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, oops.Code("CART_INVALID_POSITION").
			With("position", raw).
			Errorf("position must be a number from 1")
	}
	return n - 1, nil
}

func printCart(w io.Writer, s cart.State) {
	if len(s) == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		fmt.Fprintln(w, cart.Badge(s))
		return
	}
	for i, item := range s {
		fmt.Fprintf(w, "%d. %s  x%d  %s  $%.2f\n",
			i+1, item.Text, item.EffectiveQuantity(), item.EffectiveColor(), item.Price)
	}
	fmt.Fprintf(w, "Subtotal: $%.2f\n", cart.Subtotal(s))
	fmt.Fprintln(w, cart.Badge(s))
}
