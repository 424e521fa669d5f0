package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/banshee-data/topofingerprint/internal/batch"
)

// printer writes the coloured command summary. Colour follows fatih/color's
// terminal detection and NO_COLOR.
type printer struct {
	out, err io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
}

func newPrinter(out, err io.Writer) *printer {
	return &printer{
		out:    out,
		err:    err,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		cyan:   color.New(color.FgCyan),
	}
}

func (p *printer) success(format string, a ...any) {
	p.green.Fprintf(p.out, "✓ "+format+"\n", a...)
}

func (p *printer) info(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

func (p *printer) warning(format string, a ...any) {
	p.yellow.Fprintf(p.out, "! "+format+"\n", a...)
}

// failure prints err to stderr and returns it for cobra.
func (p *printer) failure(err error) error {
	p.red.Fprintf(p.err, "✗ %v\n", err)
	return err
}

// diagramSummary prints the outcome counts and every non-computed task.
func (p *printer) diagramSummary(rep *batch.Report) {
	p.cyan.Fprintln(p.out, "Diagram round")
	p.info("  %s", rep.Summary())
	for _, r := range rep.With(batch.OutcomeSkipped) {
		p.warning("skipped %s: %s", r.Key, r.Detail)
	}
	for _, r := range rep.With(batch.OutcomeFailed) {
		p.red.Fprintf(p.out, "✗ failed %s: %s\n", r.Key, r.Detail)
	}
}

// matrixSummary prints the written matrices and every aborted one.
func (p *printer) matrixSummary(ms []*batch.Matrix, failures []batch.MatrixFailure) {
	p.cyan.Fprintln(p.out, "Distance rounds")
	keys := make([]string, 0, len(ms))
	for _, m := range ms {
		keys = append(keys, fmt.Sprintf("%s (%d samples)", m.Key, m.Size()))
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.success("%s", k)
	}
	for _, f := range failures {
		p.red.Fprintf(p.out, "✗ aborted %s: %v\n", f.Key, f.Err)
	}
	if len(ms) == 0 && len(failures) == 0 {
		p.warning("no matrices: no selection has a computed diagram")
	}
}
