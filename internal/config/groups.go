package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/fsutil"
)

// groupsFile is the YAML layout of a group table:
//
//	groups:
//	  tumor: [tumor cells, Ki67+ tumor cells]
//	  non_tumor: [endothelial cells, stromal cells]
type groupsFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadGroupTable reads a YAML group table and checks it with
// cells.NewClassifier. An empty path returns cells.DefaultGroupTable.
func LoadGroupTable(fsys fsutil.FileSystem, path string) (cells.GroupTable, error) {
	if path == "" {
		return cells.DefaultGroupTable(), nil
	}
	data, err := readBounded(fsys, path, ".yaml", ".yml")
	if err != nil {
		return nil, err
	}
	var f groupsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse group table: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("%w: %s defines no groups", cells.ErrInvalidGroupTable, path)
	}
	table := cells.GroupTable(f.Groups)
	if _, err := cells.NewClassifier(table); err != nil {
		return nil, err
	}
	return table, nil
}

// MarshalGroupTable renders a table in the layout LoadGroupTable reads.
func MarshalGroupTable(table cells.GroupTable) ([]byte, error) {
	return yaml.Marshal(groupsFile{Groups: table})
}
