package main

import (
	"github.com/spf13/cobra"
)

type runFlags struct {
	frames   []string
	metadata string
	out      string
}

func newRunCommand(g *globals) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over tracking tables and write the result tables",
		Example: `  trajan run --frames 'data/input_w*.csv' --metadata data/supplementary.csv --out results
  TRAJAN_WORKER_COUNT=16 trajan run -f week1.csv -f week2.csv -m meta.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, g, f)
		},
	}
	cmd.Flags().StringSliceVarP(&f.frames, "frames", "f", nil, "frame table path or glob (repeatable)")
	cmd.Flags().StringVarP(&f.metadata, "metadata", "m", "", "episode metadata table")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (default from config)")
	_ = cmd.MarkFlagRequired("frames")
	_ = cmd.MarkFlagRequired("metadata")
	return cmd
}

func runRun(cmd *cobra.Command, g *globals, f *runFlags) error {
	ctx := cmd.Context()
	cfg := g.cfg
	if f.out != "" {
		cfg.Output.Dir = f.out
	}

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	report, err := runPipeline(ctx, cfg, svc, input{frames: f.frames, metadata: f.metadata})
	if err != nil {
		return err
	}
	paths, err := writeArtifacts(cfg.Output.Dir, report, cfg.Archetype.TopSimilar)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, report, paths, isTerminal(out))
	return nil
}
