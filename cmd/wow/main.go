// Command wow fetches quotes from a wowd server, solving its proof-of-work
// challenge first.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/xerrors"

	"powquote/client"
	"powquote/core/config"
	"powquote/core/logging"
	"powquote/p2p"
	"powquote/wire"
)

var (
	configPath string
	flagCfg    = config.DefaultClient()
)

var rootCmd = &cobra.Command{
	Use:          "wow",
	Short:        "Fetch a word of wisdom from a wowd server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, cmd.OutOrStdout())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	f.StringVarP(&flagCfg.Server, "server", "s", flagCfg.Server, "TCP address of the server")
	f.StringVar(&flagCfg.Peer, "peer", flagCfg.Peer, "libp2p multiaddr of the server, ending in /p2p/<id> (overrides --server)")
	f.IntVarP(&flagCfg.Threads, "threads", "t", flagCfg.Threads, "Solver goroutines")
	f.IntVar(&flagCfg.MemLimit, "memlimit", flagCfg.MemLimit, "Largest message payload accepted, in bytes")
	f.Int64VarP(&flagCfg.Quote, "quote", "q", flagCfg.Quote, "Quote number to request (negative for a random one)")
	f.IntVarP(&flagCfg.Count, "count", "n", flagCfg.Count, "Number of quotes to fetch over one connection")
	f.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (trace, debug, info, warn, error)")
}

func loadConfig(flags *pflag.FlagSet) (config.Client, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return cfg, err
	}
	overrides := map[string]func(){
		"server":    func() { cfg.Server = flagCfg.Server },
		"peer":      func() { cfg.Peer = flagCfg.Peer },
		"threads":   func() { cfg.Threads = flagCfg.Threads },
		"memlimit":  func() { cfg.MemLimit = flagCfg.MemLimit },
		"quote":     func() { cfg.Quote = flagCfg.Quote },
		"count":     func() { cfg.Count = flagCfg.Count },
		"log-level": func() { cfg.LogLevel = flagCfg.LogLevel },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	return cfg, cfg.Validate()
}

func connect(ctx context.Context, cfg config.Client) (*client.Client, func(), error) {
	log := logging.New(cfg.LogLevel, "client")
	if cfg.Peer == "" {
		c, err := client.Dial(ctx, cfg, client.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}

	h, err := p2p.NewHost("", logging.New(cfg.LogLevel, "p2p"))
	if err != nil {
		return nil, nil, err
	}
	s, err := h.Dial(ctx, cfg.Peer)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	c := client.NewFromStream(s, cfg, client.WithLogger(log))
	return c, func() {
		c.Close()
		h.Close()
	}, nil
}

func run(ctx context.Context, cfg config.Client, out io.Writer) error {
	c, closeFn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	req := wire.NewRequest(cfg.Quote)
	quoteColor := color.New(color.Bold, color.FgCyan)
	for i := 0; i < cfg.Count; i++ {
		quote, err := c.Fetch(ctx, req.Number)
		var rerr *client.ResponseError
		if xerrors.As(err, &rerr) {
			fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("rejected:"), rerr.Message)
			continue
		}
		if err != nil {
			return err
		}
		quoteColor.Fprintln(out, quote)
	}
	return nil
}
