// Command guest is a terminal client for wishlist guests: it keeps a
// stable guest identity on disk, reserves items, pledges to group gifts
// and follows a wishlist live.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliyamo/wishly/internal/apiclient"
	"github.com/iliyamo/wishly/internal/guest"
	"github.com/iliyamo/wishly/pkg/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	log     *logrus.Logger
	client  *apiclient.Client
	manager *guest.Manager
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "guest",
		Short:         "Reserve and chip in on shared wishlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := configureViper(configFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return a.init(v)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/wishly/guest.yaml)")
	root.PersistentFlags().String("server", "http://localhost:8080", "wishlist server URL")
	root.PersistentFlags().String("state", "", "guest identity file (default $XDG_CONFIG_HOME/wishly/guest.json)")
	root.PersistentFlags().String("log-level", "warn", "log level")

	root.AddCommand(
		newWhoamiCmd(a),
		newNameCmd(a),
		newShowCmd(a),
		newReserveCmd(a),
		newUnreserveCmd(a),
		newContributeCmd(a),
		newWatchCmd(a),
	)
	return root
}

// configureViper layers flags over WISHLY_* environment variables over an
// optional guest.yaml.
func configureViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("log-level", "warn")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("guest")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "wishly"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WISHLY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

func (a *app) init(v *viper.Viper) error {
	a.log = logger.New(v.GetString("log-level"))
	a.client = apiclient.New(v.GetString("server"))

	path := v.GetString("state")
	if path == "" {
		p, err := guest.DefaultPath()
		if err != nil {
			return fmt.Errorf("locate guest state: %w", err)
		}
		path = p
	}
	a.manager = guest.NewManager(guest.FileStore{Path: path}, a.log.WithField("component", "guest"))
	return nil
}

// identity returns the guest identity, insisting on a display name since
// every guest action shows it to the other guests.
func (a *app) identity() (guest.Identity, error) {
	id, err := a.manager.EnsureIdentity()
	if err != nil {
		return id, err
	}
	if id.GuestName == "" {
		return id, errors.New(`no guest name yet, run "guest name <your name>" first`)
	}
	return id, nil
}

func (a *app) warnDegraded(cmd *cobra.Command) {
	if a.manager.Degraded() {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: guest state could not be saved; this identity lasts only for this run")
	}
}
