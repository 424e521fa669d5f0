package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/report"
	"github.com/banshee-data/topofingerprint/internal/tabular"
)

func newDistancesCmd(o *options, p *printer) *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "distances <diagram-dir>",
		Short: "Build distance matrices from a directory of diagram files",
		Long: `Reads <sample>[_<group>].csv diagrams from <diagram-dir> and writes one
matrix per selection, dimension and metric to <out>/matrices. Without --select
every selection found in the directory is compared. Exits non-zero when any
matrix is aborted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.distances(cmd, args[0], html, p); err != nil {
				return p.failure(err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "write an HTML heatmap report")
	return cmd
}

func (o *options) distances(cmd *cobra.Command, diagramDir string, html bool, p *printer) error {
	cfg, err := o.runConfig(cmd)
	if err != nil {
		return err
	}
	c, err := o.classifier(cfg)
	if err != nil {
		return err
	}
	store, rep, err := tabular.ReadDiagramDir(o.fs, diagramDir, selectionNames(c))
	if err != nil {
		return err
	}

	groups := store.Groups()
	if len(cfg.Selections) > 0 {
		sels, err := c.ParseSelections(cfg.Selections)
		if err != nil {
			return err
		}
		groups = nil
		for _, s := range sels {
			groups = append(groups, s.Name)
		}
	}
	if _, err := o.saveConfig(cfg); err != nil {
		return err
	}

	dirs := o.outputs()
	dirSink, err := tabular.NewDirSink(o.fs, dirs.diagrams, dirs.matrices)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, batch.MultiSink{dirSink})
	if err != nil {
		return err
	}
	ms, failures, err := orch.DistanceRounds(cmd.Context(), store, groups)
	if err != nil {
		return err
	}
	rep.Matrices = failures

	if rep.Count(batch.OutcomeSkipped)+rep.Count(batch.OutcomeFailed) > 0 {
		p.diagramSummary(rep)
	}
	p.matrixSummary(ms, failures)
	if html {
		if err := report.SaveHTML(o.fs, dirs.report, nil, ms); err != nil {
			return err
		}
		p.success("report written to %s", dirs.report)
	}
	return abortedError(failures)
}
