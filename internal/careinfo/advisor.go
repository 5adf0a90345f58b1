package careinfo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/plantcare/internal/model"
)

const (
	SourceCache  = "cache"
	SourceRemote = "remote"
	SourceTable  = "table"
)

// Suggestion is a care suggestion for a species. It is advisory only; the
// user picks the final watering interval.
type Suggestion struct {
	Info   model.PlantCareInfo `json:"info"`
	Source string              `json:"source"`
}

// Remote looks up care data for a species.
type Remote interface {
	Lookup(ctx context.Context, species string) (*model.PlantCareInfo, error)
}

// Advisor combines the cache, the remote service and the bundled table.
// Cache and remote are optional.
type Advisor struct {
	table  *Table
	remote Remote
	cache  Cache
	logger *slog.Logger
}

func NewAdvisor(table *Table, remote Remote, cache Cache, logger *slog.Logger) *Advisor {
	return &Advisor{
		table:  table,
		remote: remote,
		cache:  cache,
		logger: logger.With("component", "careinfo"),
	}
}

// Suggest returns care data for species. The table lookup also tries each of
// commonNames. It returns nil when nothing knows the plant.
func (a *Advisor) Suggest(ctx context.Context, species string, commonNames ...string) *Suggestion {
	species = strings.TrimSpace(species)

	if species != "" && a.cache != nil {
		info, err := a.cache.Get(ctx, species)
		if err != nil {
			a.logger.Warn("care cache read failed", "species", species, "error", err)
		} else if info != nil {
			return &Suggestion{Info: *info, Source: SourceCache}
		}
	}

	if species != "" && a.remote != nil {
		info, err := a.remote.Lookup(ctx, species)
		if err == nil {
			if a.cache != nil {
				if err := a.cache.Set(ctx, species, info); err != nil {
					a.logger.Warn("care cache write failed", "species", species, "error", err)
				}
			}
			return &Suggestion{Info: *info, Source: SourceRemote}
		}
		a.logger.Debug("remote care lookup failed, using table", "species", species, "error", err)
	}

	for _, name := range append([]string{species}, commonNames...) {
		if info := a.table.Lookup(name); info != nil {
			return &Suggestion{Info: *info, Source: SourceTable}
		}
	}
	return nil
}

// Table exposes the bundled reference table.
func (a *Advisor) Table() *Table {
	return a.table
}
