// Package careinfo suggests watering intervals and light needs for a plant
// species, from a remote species service, a Redis cache and a bundled table.
package careinfo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dukerupert/plantcare/internal/model"
)

//go:embed plant_care_info.json
var bundled []byte

// Table is the static care reference, parsed on first use.
type Table struct {
	data    []byte
	once    sync.Once
	entries []model.PlantCareInfo
	err     error
}

func NewTable(data []byte) *Table {
	return &Table{data: data}
}

// DefaultTable returns the bundled table.
func DefaultTable() *Table {
	return NewTable(bundled)
}

// Load parses the table. Only the first call does any work.
func (t *Table) Load() error {
	t.once.Do(func() {
		if err := json.Unmarshal(t.data, &t.entries); err != nil {
			t.err = fmt.Errorf("parse care table: %w", err)
			t.entries = nil
		}
	})
	return t.err
}

// Lookup returns the first entry whose scientific or common name matches,
// ignoring case, or nil.
func (t *Table) Lookup(name string) *model.PlantCareInfo {
	if t.Load() != nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range t.entries {
		e := &t.entries[i]
		if strings.EqualFold(e.Name, name) || strings.EqualFold(e.CommonName, name) {
			info := *e
			return &info
		}
	}
	return nil
}

func (t *Table) All() []model.PlantCareInfo {
	if t.Load() != nil {
		return []model.PlantCareInfo{}
	}
	out := make([]model.PlantCareInfo, len(t.entries))
	copy(out, t.entries)
	return out
}
