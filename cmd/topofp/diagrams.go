package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/diagplot"
	"github.com/banshee-data/topofingerprint/internal/tabular"
)

func newDiagramsCmd(o *options, p *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "diagrams <cloud-dir>",
		Short: "Compute a persistence diagram per sample and selection",
		Long: `Reads every <sample>.csv cloud in <cloud-dir> (X_centroid, Y_centroid and an optional
phenotype label) and writes <out>/diagrams/<sample>[_<group>].csv.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.diagrams(cmd, args[0], p); err != nil {
				return p.failure(err)
			}
			return nil
		},
	}
}

func (o *options) diagrams(cmd *cobra.Command, cloudDir string, p *printer) error {
	cfg, err := o.runConfig(cmd)
	if err != nil {
		return err
	}
	c, err := o.classifier(cfg)
	if err != nil {
		return err
	}
	sels, err := c.ParseSelections(cfg.GetSelections())
	if err != nil {
		return err
	}
	sources, err := tabular.CloudSources(o.fs, cloudDir)
	if err != nil {
		return err
	}
	if _, err := o.saveConfig(cfg); err != nil {
		return err
	}

	dirs := o.outputs()
	dirSink, err := tabular.NewDirSink(o.fs, dirs.diagrams, dirs.matrices)
	if err != nil {
		return err
	}
	sinks := batch.MultiSink{dirSink}
	if o.plots {
		ps, err := diagplot.NewSink(o.fs, dirs.plots, cfg.GetRadius())
		if err != nil {
			return err
		}
		sinks = append(sinks, ps)
	}

	orch, err := newOrchestrator(cfg, sinks)
	if err != nil {
		return err
	}
	_, rep, err := orch.DiagramRound(cmd.Context(), sources, sels)
	if err != nil {
		return err
	}
	if o.plots {
		if err := o.skeletons(cmd, cfg.BatchConfig(), sources, sels, rep); err != nil {
			return err
		}
	}
	p.diagramSummary(rep)
	p.success("diagrams written to %s", dirs.diagrams)
	return nil
}

// skeletons renders the 1-skeleton of every computed task.
func (o *options) skeletons(cmd *cobra.Command, bc batch.Config, sources []batch.Source, sels []cells.Selection, rep *batch.Report) error {
	bySample := make(map[string]batch.Source, len(sources))
	for _, s := range sources {
		bySample[s.ID] = s
	}
	byName := make(map[string]cells.Selection, len(sels))
	for _, s := range sels {
		byName[s.Name] = s
	}
	dir := o.outputs().plots
	for _, r := range rep.With(batch.OutcomeComputed) {
		src, ok := bySample[r.Key.SampleID]
		sel, ok2 := byName[r.Key.Group]
		if !ok || !ok2 {
			continue
		}
		cloud, err := src.Load(cmd.Context())
		if err != nil {
			return err
		}
		if err := diagplot.SaveSkeleton(o.fs, dir, r.Key, cloud, sel, bc.Rips); err != nil {
			return err
		}
	}
	return nil
}
