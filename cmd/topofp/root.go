package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/config"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
	"github.com/banshee-data/topofingerprint/internal/monitoring"
	"github.com/banshee-data/topofingerprint/internal/version"
)

// options holds the flags shared by every command. Values reach the run
// configuration only when the flag was set explicitly.
type options struct {
	configPath string
	groupsPath string
	radius     float64
	maxDim     int
	workers    int
	bottleneck bool
	selections []string
	dims       []int
	timeout    string
	norm       string
	order      float64
	out        string
	plots      bool
	quiet      bool

	fs fsutil.FileSystem
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return buildRootCmd(&options{fs: fsutil.OSFileSystem{}}, stdout, stderr)
}

func buildRootCmd(o *options, stdout, stderr io.Writer) *cobra.Command {
	p := newPrinter(stdout, stderr)

	root := &cobra.Command{
		Use:   "topofp",
		Short: "Topological fingerprints of cell point clouds",
		Long: `topofp builds Vietoris-Rips complexes over 2-D cell coordinates, computes
their persistence diagrams (H0, H1, H2) and compares samples with Wasserstein
and bottleneck distance matrices, optionally per phenotype group.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if o.quiet {
				monitoring.SetLogger(nil)
			} else {
				logger := log.New(stderr, "", log.LstdFlags)
				monitoring.SetLogger(logger.Printf)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "run configuration JSON file")
	f.StringVar(&o.groupsPath, "groups", "", "group table YAML file (default: built-in table)")
	f.Float64Var(&o.radius, "radius", config.DefaultRadius, "maximum edge length of the Rips complex")
	f.IntVar(&o.maxDim, "max-dim", config.DefaultMaxDim, "maximum simplex dimension (0-2)")
	f.IntVar(&o.workers, "workers", 0, "worker pool size (0: one per CPU)")
	f.BoolVar(&o.bottleneck, "bottleneck", false, "also compute bottleneck distance matrices")
	f.StringArrayVar(&o.selections, "select", nil, `point selection: "all", a group, "a+b[+c]", "all-groups" or "combinations" (repeatable)`)
	f.IntSliceVar(&o.dims, "dims", nil, "homological dimensions to compare (default 0,1)")
	f.StringVar(&o.timeout, "timeout", "", "per-task timeout, e.g. 30s (default: none)")
	f.StringVar(&o.norm, "norm", "euclidean", "ground norm: euclidean or infinity")
	f.Float64Var(&o.order, "order", config.DefaultOrder, "Wasserstein order p >= 1")
	f.StringVarP(&o.out, "out", "o", "out", "output directory")
	f.BoolVar(&o.plots, "plots", false, "render PNG persistence diagrams and 1-skeletons")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "suppress progress logging")

	root.AddCommand(
		newDiagramsCmd(o, p),
		newDistancesCmd(o, p),
		newRunCmd(o, p),
		newVersionCmd(p),
	)
	return root
}

// runConfig loads --config and applies explicitly set flags over it.
func (o *options) runConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	cfg := &config.RunConfig{}
	if o.configPath != "" {
		loaded, err := config.LoadRunConfig(o.fs, o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("radius") {
		cfg.Radius = &o.radius
	}
	if flags.Changed("max-dim") {
		cfg.MaxDim = &o.maxDim
	}
	if flags.Changed("workers") {
		cfg.Workers = &o.workers
	}
	if flags.Changed("bottleneck") {
		cfg.Bottleneck = &o.bottleneck
	}
	if flags.Changed("select") {
		cfg.Selections = o.selections
	}
	if flags.Changed("dims") {
		cfg.Dims = o.dims
	}
	if flags.Changed("timeout") {
		cfg.TaskTimeout = &o.timeout
	}
	if flags.Changed("norm") {
		cfg.Norm = &o.norm
	}
	if flags.Changed("order") {
		cfg.Order = &o.order
	}
	if flags.Changed("groups") {
		cfg.GroupsFile = &o.groupsPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// classifier loads the group table named by the configuration.
func (o *options) classifier(cfg *config.RunConfig) (*cells.Classifier, error) {
	table, err := config.LoadGroupTable(o.fs, cfg.GetGroupsFile())
	if err != nil {
		return nil, err
	}
	return cells.NewClassifier(table)
}

// selectionNames lists every name a diagram file suffix may carry.
func selectionNames(c *cells.Classifier) []string {
	var names []string
	for _, s := range c.EachGroup() {
		names = append(names, s.Name)
	}
	for _, s := range c.Combinations() {
		names = append(names, s.Name)
	}
	return names
}

// outputs is the layout of the output directory.
type outputs struct {
	diagrams string
	matrices string
	plots    string
	report   string
	config   string
}

func (o *options) outputs() outputs {
	return outputs{
		diagrams: filepath.Join(o.out, "diagrams"),
		matrices: filepath.Join(o.out, "matrices"),
		plots:    filepath.Join(o.out, "plots"),
		report:   filepath.Join(o.out, "report.html"),
		config:   filepath.Join(o.out, "run.json"),
	}
}

// saveConfig records the effective configuration next to the outputs.
func (o *options) saveConfig(cfg *config.RunConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := o.fs.MkdirAll(o.out, 0o755); err != nil {
		return nil, err
	}
	return data, o.fs.WriteFile(o.outputs().config, data, 0o644)
}

// newOrchestrator wires the configured sinks into a batch orchestrator.
func newOrchestrator(cfg *config.RunConfig, sinks batch.MultiSink, extra ...batch.Option) (*batch.Orchestrator, error) {
	opts := append([]batch.Option{batch.WithSink(sinks)}, extra...)
	return batch.New(cfg.BatchConfig(), opts...)
}
