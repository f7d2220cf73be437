package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/ls4154/chunklog"
	"github.com/ls4154/chunklog/base"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	verbose    bool
	bufferSize int
	sync       bool
}

func (g *globalFlags) options(cmd *cobra.Command) *base.Options {
	opt := base.DefaultOptions()
	opt.ReadBufferSize = g.bufferSize
	opt.SyncOnCommit = g.sync
	if g.verbose {
		opt.Logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	}
	return opt
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "chunkctl",
		Short:         "Inspect and maintain chunk log files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log skipped and dropped regions to stderr")
	root.PersistentFlags().IntVar(&g.bufferSize, "buffer-size", base.DefaultOptions().ReadBufferSize, "reader read-ahead buffer size in bytes")
	root.PersistentFlags().BoolVar(&g.sync, "sync", false, "fsync after every committed chunk")

	root.AddCommand(newDumpCommand(g))
	root.AddCommand(newStatCommand(g))
	root.AddCommand(newAppendCommand(g))
	root.AddCommand(newRepairCommand(g))
	return root
}

func newDumpCommand(g *globalFlags) *cobra.Command {
	var asHex bool

	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Print every well-formed chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := chunklog.NewReader(args[0], g.options(cmd))
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			for i := 0; ; i++ {
				record, err := r.ReadChunk()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if asHex {
					fmt.Fprintf(out, "#%d len=%d\n%s", i, len(record), hex.Dump(record))
				} else {
					fmt.Fprintf(out, "#%d len=%d %s\n", i, len(record), strconv.Quote(string(record)))
				}
			}
		},
	}
	cmd.Flags().BoolVar(&asHex, "hex", false, "print payloads as a hex dump")
	return cmd
}

func newStatCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stat FILE",
		Short: "Summarize chunks and skipped regions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := g.options(cmd)
			r, err := chunklog.NewReader(args[0], opt)
			if err != nil {
				return err
			}
			defer r.Close()

			for {
				_, err := r.ReadChunk()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
			}

			stats := r.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chunks:        %d\n", stats.Chunks)
			fmt.Fprintf(out, "payload bytes: %d\n", stats.PayloadBytes)
			fmt.Fprintf(out, "garbage bytes: %d\n", stats.GarbageBytes)
			fmt.Fprintf(out, "refined bytes: %d\n", stats.RefinedBytes)
			fmt.Fprintf(out, "torn bytes:    %d\n", stats.TornBytes)
			return nil
		},
	}
}

func newAppendCommand(g *globalFlags) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "append FILE [PAYLOAD...]",
		Short: "Commit each payload as its own chunk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records [][]byte
			for _, a := range args[1:] {
				records = append(records, []byte(a))
			}
			if fromStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				records = append(records, data)
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: nothing to append", base.ErrInvalidArgument)
			}
			return chunklog.AppendChunks(args[0], g.options(cmd), records...)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "append stdin as one more chunk")
	return cmd
}

func newRepairCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repair FILE",
		Short: "Rewrite FILE keeping only well-formed chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := chunklog.Repair(args[0], g.options(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d chunks, dropped %d bytes\n",
				stats.Chunks, stats.GarbageBytes+stats.RefinedBytes+stats.TornBytes)
			return nil
		},
	}
}
