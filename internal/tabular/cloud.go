// Package tabular reads and writes the pipeline's CSV files: point clouds,
// persistence diagrams and distance matrices.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/topofingerprint/internal/batch"
	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
)

// Column names of a point-cloud file.
const (
	ColumnX = "X_centroid"
	ColumnY = "Y_centroid"
)

// LabelColumns are the accepted phenotype label columns, in order of
// preference.
var LabelColumns = []string{"label", "phenotype_key", "phenotype"}

// Ext is the extension of every file this package writes.
const Ext = ".csv"

// headerIndex maps trimmed column names to their position. A UTF-8 byte
// order mark on the first cell is dropped.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// ReadCloud parses a point-cloud CSV. X_centroid and Y_centroid are
// required; the first present label column is used, otherwise points are
// unlabelled. Other columns are ignored.
func ReadCloud(r io.Reader, sampleID string) (cells.Cloud, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return cells.Cloud{}, fmt.Errorf("%w: %s: empty file", fault.ErrMalformedInput, sampleID)
		}
		return cells.Cloud{}, fmt.Errorf("%w: %s: %v", fault.ErrMalformedInput, sampleID, err)
	}
	idx := headerIndex(header)
	xi, okX := idx[ColumnX]
	yi, okY := idx[ColumnY]
	if !okX || !okY {
		return cells.Cloud{}, fmt.Errorf("%w: %s: missing %s or %s column", fault.ErrMalformedInput, sampleID, ColumnX, ColumnY)
	}
	li := -1
	for _, name := range LabelColumns {
		if i, ok := idx[name]; ok {
			li = i
			break
		}
	}

	cloud := cells.Cloud{SampleID: sampleID}
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cells.Cloud{}, fmt.Errorf("%w: %s: %v", fault.ErrMalformedInput, sampleID, err)
		}
		if xi >= len(rec) || yi >= len(rec) {
			return cells.Cloud{}, fmt.Errorf("%w: %s line %d: short record", fault.ErrMalformedInput, sampleID, line)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[xi]), 64)
		if err != nil {
			return cells.Cloud{}, fmt.Errorf("%w: %s line %d: invalid %s: %v", fault.ErrMalformedInput, sampleID, line, ColumnX, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yi]), 64)
		if err != nil {
			return cells.Cloud{}, fmt.Errorf("%w: %s line %d: invalid %s: %v", fault.ErrMalformedInput, sampleID, line, ColumnY, err)
		}
		p := cells.Point{X: x, Y: y}
		if li >= 0 && li < len(rec) {
			p.Label = strings.TrimSpace(rec[li])
		}
		cloud.Points = append(cloud.Points, p)
	}
	return cloud, nil
}

// LoadCloud reads a point-cloud file. The sample ID is the file name without
// its extension.
func LoadCloud(fsys fsutil.FileSystem, path string) (cells.Cloud, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return cells.Cloud{}, fmt.Errorf("open cloud: %w", err)
	}
	defer f.Close()
	return ReadCloud(f, SampleID(path))
}

// SampleID derives a sample ID from a file path.
func SampleID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// CloudSources returns one lazily loaded batch source per CSV file in dir.
func CloudSources(fsys fsutil.FileSystem, dir string) ([]batch.Source, error) {
	names, err := fsys.ListFiles(dir, Ext)
	if err != nil {
		return nil, fmt.Errorf("list clouds: %w", err)
	}
	out := make([]batch.Source, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		out = append(out, batch.Source{
			ID: SampleID(name),
			Load: func(context.Context) (cells.Cloud, error) {
				return LoadCloud(fsys, path)
			},
		})
	}
	return out, nil
}
