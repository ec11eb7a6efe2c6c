package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/trajan/internal/synth"
)

type synthFlags struct {
	episodes   int
	seed       uint64
	partitions int
	overlap    int
	out        string
}

func newSynthCommand(_ *globals) *cobra.Command {
	f := &synthFlags{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic tracking tables for trying the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := synth.New(
				synth.WithEpisodes(f.episodes),
				synth.WithSeed(f.seed),
				synth.WithPartitions(f.partitions),
				synth.WithOverlap(f.overlap),
			)
			frames, metadata, err := g.WriteCSV(f.out)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range frames {
				fmt.Fprintln(out, p)
			}
			fmt.Fprintln(out, metadata)
			return nil
		},
	}
	cmd.Flags().IntVarP(&f.episodes, "episodes", "n", 200, "number of episodes")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&f.partitions, "partitions", 2, "number of frame tables")
	cmd.Flags().IntVar(&f.overlap, "overlap", 0, "frame rows repeated at the start of the next table")
	cmd.Flags().StringVarP(&f.out, "out", "o", "data", "output directory")
	return cmd
}
