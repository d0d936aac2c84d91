package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/wishly/internal/apiclient"
	"github.com/iliyamo/wishly/internal/model"
	"github.com/iliyamo/wishly/internal/readmodel"
)

const commandTimeout = 15 * time.Second

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the guest name and identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.manager.EnsureIdentity()
			if err != nil {
				return err
			}
			name := id.GuestName
			if name == "" {
				name = "(not set)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "name:       %s\nidentifier: %s\n", name, id.GuestIdentifier)
			a.warnDegraded(cmd)
			return nil
		},
	}
}

func newNameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "name <display name>",
		Short: "Set the name other guests see",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.manager.EnsureIdentity(); err != nil {
				return err
			}
			if err := a.manager.SetName(args[0]); err != nil {
				return err
			}
			a.warnDegraded(cmd)
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <share token>",
		Short: "Print a shared wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.manager.EnsureIdentity()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			view, err := a.client.Wishlist(ctx, args[0], id.GuestIdentifier)
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newReserveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <item id>",
		Short: "Reserve an item so nobody else buys it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			res, err := a.client.Reserve(ctx, args[0], id)
			if apiclient.HasCode(err, "already_reserved") {
				return errors.New("someone already reserved this item")
			}
			if err != nil {
				return err
			}
			a.manager.RememberReservation(res.ItemID, res.ReservationID)
			fmt.Fprintf(cmd.OutOrStdout(), "reserved %s (reservation %s)\n", res.ItemID, res.ReservationID)
			a.warnDegraded(cmd)
			return nil
		},
	}
}

func newUnreserveCmd(a *app) *cobra.Command {
	var shareToken string
	cmd := &cobra.Command{
		Use:   "unreserve <item id>",
		Short: "Release a reservation made from this identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := args[0]
			id, err := a.manager.EnsureIdentity()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			reservationID, ok := a.manager.ReservationFor(itemID)
			if !ok && shareToken != "" {
				// The local record may be gone; the server still knows which
				// reservation belongs to this identifier.
				view, err := a.client.Wishlist(ctx, shareToken, id.GuestIdentifier)
				if err != nil {
					return err
				}
				if it, found := readmodel.NewModel(view).Item(itemID); found && it.MyReservationID != nil {
					reservationID, ok = *it.MyReservationID, true
				}
			}
			if !ok {
				return fmt.Errorf("no reservation of yours on item %s (pass --wishlist to look it up)", itemID)
			}
			err = a.client.Unreserve(ctx, reservationID, id.GuestIdentifier)
			switch {
			case apiclient.HasCode(err, "not_found"):
				// Released elsewhere or the item is gone; drop the stale record.
				a.manager.ForgetReservation(itemID)
				fmt.Fprintf(cmd.OutOrStdout(), "%s was already released\n", itemID)
				return nil
			case apiclient.HasCode(err, "forbidden"):
				return fmt.Errorf("reservation %s belongs to another guest", reservationID)
			case err != nil:
				return err
			}
			a.manager.ForgetReservation(itemID)
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", itemID)
			return nil
		},
	}
	cmd.Flags().StringVar(&shareToken, "wishlist", "", "share token used to find the reservation when it is not remembered locally")
	return cmd
}

func newContributeCmd(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "contribute <item id> <amount>",
		Short: "Chip in on a group gift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := model.ParseCents(args[1])
			if err != nil {
				return fmt.Errorf("amount %q: %w", args[1], err)
			}
			id, err := a.identity()
			if err != nil {
				return err
			}
			var msg *string
			if message != "" {
				msg = &message
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			res, err := a.client.Contribute(ctx, args[0], amount, id, msg)
			if apiclient.HasCode(err, "fully_funded") {
				return errors.New("this gift is already fully funded")
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Clamped {
				fmt.Fprintf(out, "only %s was left, contributed %s instead of %s\n", res.Amount, res.Amount, res.RequestedAmount)
			} else {
				fmt.Fprintf(out, "contributed %s\n", res.Amount)
			}
			fmt.Fprintf(out, "total %s from %d guests (%.0f%%)\n", res.ContributionTotal, res.ContributionCount, res.ProgressAfter)
			if res.Completed {
				fmt.Fprintln(out, "your contribution completed the gift!")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "note shown next to your contribution")
	return cmd
}

func printView(w io.Writer, v readmodel.WishlistView) {
	fmt.Fprintf(w, "%s", v.Wishlist.Title)
	if v.Wishlist.EventDate != nil {
		fmt.Fprintf(w, " (%s)", *v.Wishlist.EventDate)
	}
	fmt.Fprintln(w)
	if !v.Wishlist.IsActive {
		fmt.Fprintln(w, "this wishlist is closed")
	}
	for _, it := range v.Items {
		printItem(w, it)
	}
}

func printItem(w io.Writer, it readmodel.ItemView) {
	price := "-"
	if it.Price != nil {
		price = it.Price.String()
	}
	switch {
	case it.IsGroupGift:
		fmt.Fprintf(w, "  [%3.0f%%] %s  %s  raised %s from %d\n", it.ProgressPercentage, it.ID, it.Name, it.ContributionTotal, it.ContributionCount)
	case it.MyReservationID != nil:
		fmt.Fprintf(w, "  [mine] %s  %s  %s\n", it.ID, it.Name, price)
	case it.IsReserved:
		fmt.Fprintf(w, "  [ x  ] %s  %s  %s\n", it.ID, it.Name, price)
	default:
		fmt.Fprintf(w, "  [    ] %s  %s  %s\n", it.ID, it.Name, price)
	}
}
