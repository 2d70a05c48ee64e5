package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kolibri-v0/internal/config"
	"kolibri-v0/internal/knowledge"
	"kolibri-v0/internal/ledger"
	"kolibri-v0/internal/node"
)

func main() {
	root := &cobra.Command{
		Use:   "kolibri",
		Short: "Evolving formula node with a tamper-evident genome ledger",
	}
	root.AddCommand(runCmd(), verifyCmd(), replayCmd(), shareCmd(), indexCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the node with an interactive command loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.FromEnv()
			if err != nil {
				return err
			}
			rt, err := node.New(opts, newLogger())
			if err != nil {
				return err
			}
			defer rt.Close()
			return repl(rt, opts)
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the genome ledger's hash chain and HMAC tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.FromEnv()
			if err != nil {
				return err
			}
			status, err := ledger.Verify(opts.GenomePath, opts.HMACKey)
			if err != nil {
				return err
			}
			if status == ledger.StatusMissing {
				fmt.Printf("%s: missing, trivially valid\n", opts.GenomePath)
				return nil
			}
			fmt.Printf("%s: ok\n", opts.GenomePath)
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Print every verified ledger record in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.FromEnv()
			if err != nil {
				return err
			}
			status, err := ledger.Replay(opts.GenomePath, opts.HMACKey, func(rec ledger.Record) error {
				event, err := rec.Event()
				if err != nil {
					return err
				}
				payload, err := rec.Payload()
				if err != nil {
					return err
				}
				fmt.Printf("%6d  %d  %-14s %s\n", rec.Index, rec.Timestamp, event, payload)
				return nil
			})
			if err != nil {
				return err
			}
			if status == ledger.StatusMissing {
				fmt.Printf("%s: missing, nothing to replay\n", opts.GenomePath)
			}
			return nil
		},
	}
}

func shareCmd() *cobra.Command {
	var host string
	var port uint16
	var generations int
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Evolve and push the best formula to one peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.FromEnv()
			if err != nil {
				return err
			}
			opts.ListenPort = 0
			rt, err := node.New(opts, newLogger())
			if err != nil {
				return err
			}
			defer rt.Close()
			if generations > 0 {
				rt.Evolve(generations)
			}
			if err := rt.SharePeer(host, port); err != nil {
				return err
			}
			fmt.Printf("shared best formula with %s:%d\n", host, port)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "peer host")
	cmd.Flags().Uint16Var(&port, "port", 9595, "peer port")
	cmd.Flags().IntVar(&generations, "generations", 0, "generations to run before sharing")
	return cmd
}

func indexCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the sqlite knowledge index from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.FromEnv()
			if err != nil {
				return err
			}
			path := out
			if path == "" {
				path = opts.IndexPath
			}
			if path == "" {
				return fmt.Errorf("no index path: set --out or KOLIBRI_INDEX")
			}
			db, err := knowledge.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := db.IndexLedger(opts.GenomePath, opts.HMACKey)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d records into %s\n", n, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "index file path (default KOLIBRI_INDEX)")
	return cmd
}
