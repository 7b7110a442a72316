// Command wowd serves quotes to clients that solve a proof-of-work challenge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"powquote/core/config"
	"powquote/core/logging"
	"powquote/dataset"
	"powquote/metrics"
	"powquote/p2p"
	"powquote/server"
)

var (
	configPath string
	flagCfg    = config.DefaultServer()
)

var rootCmd = &cobra.Command{
	Use:          "wowd",
	Short:        "Quote server guarded by a proof-of-work challenge",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	pf.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&flagCfg.QuotesDir, "quotes-dir", flagCfg.QuotesDir, "Badger quote store directory (empty uses the built-in quotes)")

	f := rootCmd.Flags()
	f.StringVarP(&flagCfg.Listen, "listen", "l", flagCfg.Listen, "TCP listen address (empty disables TCP)")
	f.Uint8VarP(&flagCfg.ZeroBits, "zero-bits", "z", flagCfg.ZeroBits, "Leading zero bits required of a solution")
	f.IntVar(&flagCfg.Length, "length", flagCfg.Length, "Challenge length in bytes")
	f.IntVar(&flagCfg.MemLimit, "memlimit", flagCfg.MemLimit, "Largest message payload accepted, in bytes")
	f.IntVar(&flagCfg.SessionLimit, "session-limit", flagCfg.SessionLimit, "Outstanding challenges kept per connection")
	f.DurationVar(&flagCfg.SessionTTL.Duration, "session-ttl", flagCfg.SessionTTL.Duration, "Lifetime of an unanswered challenge")
	f.DurationVar(&flagCfg.IdleTimeout.Duration, "idle-timeout", flagCfg.IdleTimeout.Duration, "Close connections idle this long (0 disables)")
	f.StringVar(&flagCfg.MetricsListen, "metrics-listen", flagCfg.MetricsListen, "Prometheus endpoint address (empty disables)")
	f.StringVar(&flagCfg.P2PListen, "p2p-listen", flagCfg.P2PListen, "libp2p listen multiaddr, e.g. /ip4/0.0.0.0/tcp/4001 (empty disables)")

	rootCmd.AddCommand(importCmd, digestCmd, configCmd)
}

// loadConfig reads the configuration file and applies every flag that was set
// explicitly on top of it.
func loadConfig(flags *pflag.FlagSet) (config.Server, error) {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return cfg, err
	}
	overrides := map[string]func(){
		"log-level":      func() { cfg.LogLevel = flagCfg.LogLevel },
		"quotes-dir":     func() { cfg.QuotesDir = flagCfg.QuotesDir },
		"listen":         func() { cfg.Listen = flagCfg.Listen },
		"zero-bits":      func() { cfg.ZeroBits = flagCfg.ZeroBits },
		"length":         func() { cfg.Length = flagCfg.Length },
		"memlimit":       func() { cfg.MemLimit = flagCfg.MemLimit },
		"session-limit":  func() { cfg.SessionLimit = flagCfg.SessionLimit },
		"session-ttl":    func() { cfg.SessionTTL = flagCfg.SessionTTL },
		"idle-timeout":   func() { cfg.IdleTimeout = flagCfg.IdleTimeout },
		"metrics-listen": func() { cfg.MetricsListen = flagCfg.MetricsListen },
		"p2p-listen":     func() { cfg.P2PListen = flagCfg.P2PListen },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	return cfg, cfg.Validate()
}

// openQuotes returns the configured quote collection and a function that
// releases it.
func openQuotes(dir string) (dataset.Collection, func() error, error) {
	if dir == "" {
		return dataset.Builtin(), func() error { return nil }, nil
	}
	store, err := dataset.OpenBadgerStore(dir)
	if err != nil {
		return nil, nil, err
	}
	if store.Len() == 0 {
		store.Close()
		return nil, nil, xerrors.Errorf("quote store in %s is empty, run `wowd import` first: %w", dir, dataset.ErrEmpty)
	}
	return store, store.Close, nil
}

func serve(ctx context.Context, cfg config.Server) error {
	log := logging.New(cfg.LogLevel, "wowd")

	quotes, closeQuotes, err := openQuotes(cfg.QuotesDir)
	if err != nil {
		return err
	}
	defer closeQuotes()

	opts := []server.Option{server.WithLogger(logging.New(cfg.LogLevel, "server"))}
	var reg *metrics.Collectors
	if cfg.MetricsListen != "" {
		reg = metrics.New()
		opts = append(opts, server.WithMetrics(reg))
	}
	srv, err := server.New(cfg, quotes, opts...)
	if err != nil {
		return err
	}

	// Startup failures must return before any goroutine runs.
	var host *p2p.Host
	if cfg.P2PListen != "" {
		host, err = p2p.NewHost(cfg.P2PListen, logging.New(cfg.LogLevel, "p2p"))
		if err != nil {
			return err
		}
		defer host.Close()
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Listen != "" {
		g.Go(func() error { return srv.ListenAndServe(ctx) })
	}
	if reg != nil {
		log.Info().Str("addr", cfg.MetricsListen).Msg("metrics endpoint enabled")
		g.Go(func() error { return reg.Serve(ctx, cfg.MetricsListen) })
	}
	if host != nil {
		g.Go(func() error { return host.Serve(ctx, srv) })
	}

	err = g.Wait()
	log.Info().Msg("shut down")
	return err
}
