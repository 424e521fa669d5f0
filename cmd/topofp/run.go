package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/db"
	"github.com/banshee-data/topofingerprint/internal/diagplot"
	"github.com/banshee-data/topofingerprint/internal/report"
	"github.com/banshee-data/topofingerprint/internal/runstore"
	"github.com/banshee-data/topofingerprint/internal/tabular"
)

type runFlags struct {
	dbPath      string
	html        bool
	metricsAddr string
}

func newRunCmd(o *options, p *printer) *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run <cloud-dir>",
		Short: "Compute diagrams and distance matrices in one batch",
		Long: `Runs the diagram round over <cloud-dir>, then one distance round per
selection, dimension and metric. Diagrams and matrices go to <out>; --db also
records the run in SQLite. Exits non-zero when any matrix is aborted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.run(cmd, args[0], rf, p); err != nil {
				return p.failure(err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&rf.dbPath, "db", "", "record the run in this SQLite database")
	f.BoolVar(&rf.html, "html", false, "write an HTML heatmap report")
	f.StringVar(&rf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	return cmd
}

func (o *options) run(cmd *cobra.Command, cloudDir string, rf runFlags, p *printer) error {
	ctx := cmd.Context()
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
	cfgJSON, err := o.saveConfig(cfg)
	if err != nil {
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

	var (
		store *runstore.Store
		runID string
	)
	if rf.dbPath != "" {
		database, err := db.Open(rf.dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = runstore.NewStore(database.DB)
		r, err := store.CreateRun(ctx, cfgJSON)
		if err != nil {
			return err
		}
		runID = r.RunID
		sinks = append(sinks, store.Recorder(runID))
	}

	var extra []batch.Option
	if rf.metricsAddr != "" {
		ms, err := startMetrics(rf.metricsAddr)
		if err != nil {
			return err
		}
		defer ms.Close()
		p.info("metrics on http://%s/metrics", ms.addr)
		extra = append(extra, batch.WithMetrics(ms.metrics))
	}

	orch, err := newOrchestrator(cfg, sinks, extra...)
	if err != nil {
		return err
	}
	res, runErr := orch.Run(ctx, sources, sels)
	if store != nil {
		// Record the final state even when the run was cancelled.
		if err := store.FinishRun(context.WithoutCancel(ctx), runID, orch.State()); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if o.plots {
		if err := o.skeletons(cmd, cfg.BatchConfig(), sources, sels, res.Report); err != nil {
			return err
		}
	}
	if rf.html {
		if err := report.SaveHTML(o.fs, dirs.report, res.Report, res.Matrices); err != nil {
			return err
		}
	}

	p.diagramSummary(res.Report)
	p.matrixSummary(res.Matrices, res.Report.Matrices)
	p.info("state: %s", res.State)
	if runID != "" {
		p.info("run %s recorded in %s", runID, rf.dbPath)
	}
	if rf.html {
		p.success("report written to %s", dirs.report)
	}
	return abortedError(res.Report.Matrices)
}
