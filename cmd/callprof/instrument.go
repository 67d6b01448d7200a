package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/callprof/internal/instrument"
)

func newInstrumentCmd() *cobra.Command {
	var (
		write bool
		skip  []string
	)

	cmd := &cobra.Command{
		Use:   "instrument <file>...",
		Short: "Add call hooks to every function of Go source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := instrument.Options{Skip: skip}
			for _, filename := range args {
				if err := instrumentFile(cmd, filename, opts, write); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result to the source file instead of stdout")
	cmd.Flags().StringArrayVar(&skip, "skip", nil, "Function left untouched, as name or Type.Method (repeatable)")

	return cmd
}

func instrumentFile(cmd *cobra.Command, filename string, opts instrument.Options, write bool) error {
	info, err := os.Stat(filename)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	out, count, err := instrument.Source(filename, src, opts)
	if err != nil {
		return err
	}
	log.Debug().Str("file", filename).Int("functions", count).Msg("instrumented")

	if !write {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(filename, out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("can't write %s: %w", filename, err)
	}
	return nil
}
