package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bikestore/internal/cart"
	"bikestore/internal/checkout"
	"bikestore/internal/config"
	"bikestore/internal/models"
)

func cartCmd() *cobra.Command {
	return newCartCmd(
		func() *cart.Store { return cart.NewStore(cart.NewFileStorage(config.AppEnv.CartFile), nil) },
		func() string { return config.AppEnv.ServerURL },
	)
}

// newCartCmd builds the cart subcommands over whatever store open returns.
func newCartCmd(open func() *cart.Store, serverURL func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local shopping cart",
	}

	// store wires the bus to the command output so every persisted change
	// is echoed once.
	store := func(cmd *cobra.Command) *cart.Store {
		s := open()
		s.Bus().Subscribe(func(evt cart.Event) {
			units := 0
			for _, l := range evt.Lines {
				units += l.Quantity
			}
			if evt.ProductID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (cart: %d items)\n", evt.Kind, evt.ProductID, units)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (cart: %d items)\n", evt.Kind, units)
		})
		return s
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [productId] [quantity]",
		Short: "Add units of a product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				qty = n
			}
			_, err := store(cmd).Add(args[0], qty)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [productId]",
		Short: "Remove a product line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := store(cmd).Remove(args[0])
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [productId] [quantity]",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			_, err = store(cmd).SetQuantity(args[0], qty)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return store(cmd).Clear()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := open().List()
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cart is empty")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tQTY")
			for _, l := range lines {
				fmt.Fprintf(tw, "%s\t%d\n", l.ProductID, l.Quantity)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(cartCheckoutCmd(open, serverURL))
	return cmd
}

func parseQuantity(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid quantity %q", raw)
	}
	return n, nil
}

type checkoutForm struct {
	FirstName, LastName, Email, Phone, DNI string
	Address, Number, Floor, City, Province string
	ZipCode, PaymentMethod, Notes          string
}

func (f checkoutForm) payload(lines []cart.Line) map[string]interface{} {
	return map[string]interface{}{
		"items": lines,
		"customer": map[string]string{
			"firstName": f.FirstName,
			"lastName":  f.LastName,
			"email":     f.Email,
			"phone":     f.Phone,
			"dni":       f.DNI,
		},
		"shipping": map[string]string{
			"address":  f.Address,
			"number":   f.Number,
			"floor":    f.Floor,
			"city":     f.City,
			"province": f.Province,
			"zipCode":  f.ZipCode,
		},
		"paymentMethod": f.PaymentMethod,
		"notes":         f.Notes,
	}
}

func cartCheckoutCmd(open func() *cart.Store, serverURL func() string) *cobra.Command {
	var form checkoutForm
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := open()
			lines, err := s.List()
			if err != nil {
				return err
			}
			if len(lines) == 0 {
				return errors.New("cart is empty")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			status, result, err := postCheckoutRequest(ctx, serverURL(), form.payload(lines))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Success {
				for _, issue := range result.Issues {
					fmt.Fprintf(out, "  %s: requested %d, available %d (%s)\n", issue.ProductID, issue.Requested, issue.Available, issue.Issue)
				}
				if result.OrderNumber != "" {
					fmt.Fprintf(out, "order %s was created but payment could not be started\n", result.OrderNumber)
				}
				return fmt.Errorf("checkout failed (%d %s): %s", status, result.Error, result.Message)
			}

			// The cart is only emptied once the order exists.
			if err := s.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(out, "order %s placed\n", result.OrderNumber)
			if result.RedirectURL != "" {
				fmt.Fprintf(out, "complete your payment at %s\n", result.RedirectURL)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "customer first name")
	f.StringVar(&form.LastName, "last-name", "", "customer last name")
	f.StringVar(&form.Email, "email", "", "customer email")
	f.StringVar(&form.Phone, "phone", "", "customer phone")
	f.StringVar(&form.DNI, "dni", "", "customer national id")
	f.StringVar(&form.Address, "address", "", "shipping street")
	f.StringVar(&form.Number, "number", "", "shipping street number")
	f.StringVar(&form.Floor, "floor", "", "shipping floor / apartment")
	f.StringVar(&form.City, "city", "", "shipping city")
	f.StringVar(&form.Province, "province", "", "shipping province")
	f.StringVar(&form.ZipCode, "zip", "", "shipping zip code")
	f.StringVar(&form.PaymentMethod, "payment", models.PaymentMethodMercadoPago, "mercadopago, bank_transfer or cash")
	f.StringVar(&form.Notes, "notes", "", "order notes")
	for _, name := range []string{"first-name", "last-name", "email", "phone", "address", "city", "province", "zip"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func postCheckoutRequest(ctx context.Context, serverURL string, payload interface{}) (int, checkout.Result, error) {
	var result checkout.Result

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, result, fmt.Errorf("encode checkout: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/checkout", bytes.NewReader(body))
	if err != nil {
		return 0, result, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, result, fmt.Errorf("post checkout: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, result, fmt.Errorf("read checkout response: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return resp.StatusCode, result, fmt.Errorf("checkout returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return resp.StatusCode, result, nil
}
