package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
	"github.com/banshee-data/topofingerprint/internal/persistence"
)

var diagramHeader = []string{"dimension", "birth", "death"}

// FormatFloat renders a value so that ParseFloat returns it exactly.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteDiagram writes d as dimension,birth,death rows in canonical order.
// Essential classes carry persistence.EssentialDeath, written as 1e+06.
func WriteDiagram(w io.Writer, d persistence.Diagram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(diagramHeader); err != nil {
		return err
	}
	for _, p := range d.Sorted() {
		if err := cw.Write([]string{strconv.Itoa(p.Dim), FormatFloat(p.Birth), FormatFloat(p.Death)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDiagram parses a diagram CSV. Extra columns, such as an index column,
// are ignored. Infinite deaths ("inf", "Infinity") read back as
// persistence.EssentialDeath.
func ReadDiagram(r io.Reader) (persistence.Diagram, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty diagram file", fault.ErrMalformedInput)
		}
		return nil, fmt.Errorf("%w: %v", fault.ErrMalformedInput, err)
	}
	idx := headerIndex(header)
	cols := make([]int, len(diagramHeader))
	for i, name := range diagramHeader {
		c, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q column", fault.ErrMalformedInput, name)
		}
		cols[i] = c
	}

	d := persistence.Diagram{}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fault.ErrMalformedInput, err)
		}
		var vals [3]float64
		for i, c := range cols {
			if c >= len(rec) {
				return nil, fmt.Errorf("%w: line %d: short record", fault.ErrMalformedInput, line)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid %s: %v", fault.ErrMalformedInput, line, diagramHeader[i], err)
			}
			vals[i] = v
		}
		if vals[0] != math.Trunc(vals[0]) {
			return nil, fmt.Errorf("%w: line %d: dimension %v is not an integer", fault.ErrMalformedInput, line, vals[0])
		}
		death := vals[2]
		if math.IsInf(death, 1) {
			death = persistence.EssentialDeath
		}
		d = append(d, persistence.Pair{Dim: int(vals[0]), Birth: vals[1], Death: death})
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrMalformedInput, err)
	}
	return d, nil
}

// DiagramFileName names the diagram file of a key: <sample>.csv for the whole
// cloud, <sample>_<group>.csv for a selection.
func DiagramFileName(k batch.Key) string {
	if k.Group == "" {
		return k.SampleID + Ext
	}
	return k.SampleID + "_" + k.Group + Ext
}

// ParseDiagramFileName recovers the key of a diagram file. groups lists the
// selection names to recognise as suffixes; the longest match wins, and a
// file matching none belongs to the whole-cloud selection.
func ParseDiagramFileName(name string, groups []string) batch.Key {
	stem := strings.TrimSuffix(filepath.Base(name), Ext)
	best := ""
	for _, g := range groups {
		if g != "" && len(g) > len(best) && strings.HasSuffix(stem, "_"+g) && len(stem) > len(g)+1 {
			best = g
		}
	}
	if best == "" {
		return batch.Key{SampleID: stem}
	}
	return batch.Key{SampleID: strings.TrimSuffix(stem, "_"+best), Group: best}
}

// SaveDiagram writes a diagram file into dir.
func SaveDiagram(fsys fsutil.FileSystem, dir string, k batch.Key, d persistence.Diagram) error {
	w, err := fsys.Create(filepath.Join(dir, DiagramFileName(k)))
	if err != nil {
		return fmt.Errorf("create diagram file: %w", err)
	}
	if err := WriteDiagram(w, d); err != nil {
		w.Close()
		return fmt.Errorf("write diagram %s: %w", k, err)
	}
	return w.Close()
}

// ReadDiagramDir loads every diagram file of dir into a store. Malformed
// files are skipped and reported, never fatal.
func ReadDiagramDir(fsys fsutil.FileSystem, dir string, groups []string) (*batch.DiagramStore, *batch.Report, error) {
	names, err := fsys.ListFiles(dir, Ext)
	if err != nil {
		return nil, nil, fmt.Errorf("list diagrams: %w", err)
	}
	sort.Strings(names)

	store := batch.NewDiagramStore()
	report := &batch.Report{}
	for _, name := range names {
		key := ParseDiagramFileName(name, groups)
		d, err := loadDiagram(fsys, filepath.Join(dir, name))
		res := batch.TaskResult{Key: key, Outcome: batch.OutcomeComputed}
		if err != nil {
			res.Outcome = batch.OutcomeFailed
			if fault.Skippable(err) {
				res.Outcome = batch.OutcomeSkipped
			}
			res.Kind = fault.KindOf(err)
			res.Detail = err.Error()
		} else {
			res.Pairs = d.Counts()
			store.Put(key, d)
		}
		report.Results = append(report.Results, res)
	}
	return store, report, nil
}

func loadDiagram(fsys fsutil.FileSystem, path string) (persistence.Diagram, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDiagram(f)
}
