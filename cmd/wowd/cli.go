package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"powquote/core/digest"
	"powquote/dataset"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Append quotes from TOML or YAML files to the badger store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.QuotesDir == "" {
			return xerrors.New("import needs --quotes-dir or quotes-dir in the config file")
		}

		var all []dataset.Quote
		for _, path := range args {
			quotes, err := dataset.LoadFile(path)
			if err != nil {
				return err
			}
			all = append(all, quotes...)
		}

		store, err := dataset.OpenBadgerStore(cfg.QuotesDir)
		if err != nil {
			return err
		}
		defer store.Close()
		total, err := store.Import(all)
		if err != nil {
			return xerrors.Errorf("import: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d quotes, %d in store\n", len(all), total)
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest [TEXT...]",
	Short: "Print the work digest of TEXT, or of each line on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) > 0 {
			printDigest(out, strings.Join(args, " "))
			return nil
		}
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			printDigest(out, sc.Text())
		}
		return sc.Err()
	},
}

func printDigest(w io.Writer, text string) {
	sum := digest.Sum([]byte(text))
	fmt.Fprintf(w, "%016x%016x  %q\n", sum.Hi, sum.Lo, text)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
	},
}
