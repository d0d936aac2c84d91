package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/iliyamo/wishly/internal/apiclient"
	"github.com/iliyamo/wishly/internal/queue"
	"github.com/iliyamo/wishly/internal/readmodel"
	"github.com/iliyamo/wishly/internal/realtime"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <share token>",
		Short: "Follow a wishlist as other guests reserve and contribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.manager.EnsureIdentity()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			view, err := a.client.Wishlist(ctx, args[0], id.GuestIdentifier)
			cancel()
			if err != nil {
				return err
			}

			w := &watcher{
				out:        cmd.OutOrStdout(),
				client:     a.client,
				shareToken: args[0],
				guestID:    id.GuestIdentifier,
				model:      readmodel.NewModel(view),
			}
			printView(w.out, view)

			sub := realtime.NewSubscriber(realtime.SubscriberConfig{
				URL:      a.client.WebsocketURL(view.Wishlist.ID),
				Resync:   w.resync,
				OnEvent:  w.apply,
				OnStatus: w.status,
				Log:      a.log.WithField("wishlist_id", view.Wishlist.ID),
			})
			err = sub.Run(cmd.Context())
			switch {
			case errors.Is(err, realtime.ErrChannelDisconnected):
				fmt.Fprintln(w.out, "live updates paused, run watch again to see the latest")
				return nil
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		},
	}
}

// watcher owns the local copy of one wishlist.  Resync and events arrive
// from the subscriber goroutine; the mutex only guards against the first
// resync racing the initial print.
type watcher struct {
	mu         sync.Mutex
	out        io.Writer
	client     *apiclient.Client
	shareToken string
	guestID    string
	model      *readmodel.Model
}

func (w *watcher) resync(ctx context.Context) error {
	view, err := w.client.Wishlist(ctx, w.shareToken, w.guestID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model.Reset(view)
	return nil
}

func (w *watcher) apply(ev queue.Event) {
	if ev.Type == queue.WishlistDeleted {
		w.mu.Lock()
		fmt.Fprintln(w.out, "the owner deleted this wishlist")
		w.mu.Unlock()
		return
	}
	w.mu.Lock()
	needsResync := w.model.Apply(ev)
	w.mu.Unlock()

	if needsResync {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := w.resync(ctx); err != nil {
			fmt.Fprintf(w.out, "refresh failed: %v\n", err)
			return
		}
		w.mu.Lock()
		printView(w.out, w.model.View())
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if it, ok := w.model.Item(ev.ItemID); ok {
		printItem(w.out, it)
	}
}

func (w *watcher) status(st realtime.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch st {
	case realtime.StatusReconnecting:
		fmt.Fprintln(w.out, "connection lost, reconnecting...")
	case realtime.StatusConnected:
		fmt.Fprintln(w.out, "live")
	}
}
