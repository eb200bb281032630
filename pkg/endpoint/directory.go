package endpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/pario-ai/oracle/pkg/config"
	"github.com/pario-ai/oracle/pkg/models"
)

// ErrUnknownModel is returned when a model id has no directory entry.
var ErrUnknownModel = errors.New("unknown model")

// Directory resolves model ids to endpoint descriptors.
type Directory struct {
	entries map[string]models.Endpoint
	def     string
}

// New builds a Directory from the built-in table, the configured endpoint
// overrides and throttle rates. Tokens missing from the configuration are
// resolved through keys; a missing key is logged, not fatal.
func New(cfg *config.Config, keys *KeyLoader) (*Directory, error) {
	entries := make(map[string]models.Endpoint, len(builtin)+len(cfg.Endpoints))
	for _, ep := range builtin {
		entries[ep.ID] = ep
	}

	for i, override := range cfg.Endpoints {
		id := normalizeID(override.ID)
		merged, ok := entries[id]
		if !ok {
			if override.URL == "" || override.Model == "" || !override.Protocol.Valid() {
				return nil, fmt.Errorf("endpoints[%d] %q: url, model and protocol are required for a new endpoint", i, id)
			}
		}
		entries[id] = merge(merged, override, id)
	}

	for id, rate := range cfg.Throttle {
		id = normalizeID(id)
		ep, ok := entries[id]
		if !ok {
			return nil, fmt.Errorf("throttle %q: %w", id, ErrUnknownModel)
		}
		ep.Rate = rate
		entries[id] = ep
	}

	for id, ep := range entries {
		if ep.Token != "" {
			continue
		}
		token, err := keys.Load(ep.Name)
		if err != nil {
			slog.Debug("no api key for endpoint", "model", id, "provider", ep.Name, "err", err)
			continue
		}
		ep.Token = token
		entries[id] = ep
	}

	d := &Directory{entries: entries, def: normalizeID(cfg.DefaultModel)}
	if d.def != "" {
		if _, err := d.Resolve(d.def); err != nil {
			return nil, fmt.Errorf("default model: %w", err)
		}
	}
	return d, nil
}

// NewStatic builds a Directory from an explicit list of endpoints, with no
// built-ins and no key lookup.
func NewStatic(def string, endpoints ...models.Endpoint) *Directory {
	entries := make(map[string]models.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		ep.ID = normalizeID(ep.ID)
		entries[ep.ID] = ep
	}
	return &Directory{entries: entries, def: normalizeID(def)}
}

// Resolve returns the endpoint for modelID. Surrounding quotes and
// whitespace are ignored, so `x` and `"x"` name the same endpoint.
func (d *Directory) Resolve(modelID string) (models.Endpoint, error) {
	id := normalizeID(modelID)
	ep, ok := d.entries[id]
	if !ok {
		return models.Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	// Callers own the returned endpoint.
	ep.Extra = maps.Clone(ep.Extra)
	return ep, nil
}

// Default returns the model id used for requests that name none.
func (d *Directory) Default() string {
	return d.def
}

// List returns every endpoint sorted by id.
func (d *Directory) List() []models.Endpoint {
	ids := slices.Sorted(maps.Keys(d.entries))
	out := make([]models.Endpoint, 0, len(ids))
	for _, id := range ids {
		ep := d.entries[id]
		ep.Extra = maps.Clone(ep.Extra)
		out = append(out, ep)
	}
	return out
}

func normalizeID(id string) string {
	return strings.Trim(strings.TrimSpace(id), `"'`)
}

// merge overlays the non-zero fields of override onto base.
func merge(base, override models.Endpoint, id string) models.Endpoint {
	base.ID = id
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.URL != "" {
		base.URL = override.URL
	}
	if override.Token != "" {
		base.Token = override.Token
	}
	if override.Protocol != "" {
		base.Protocol = override.Protocol
	}
	if override.Sampling != "" {
		base.Sampling = override.Sampling
	}
	if override.Rate > 0 {
		base.Rate = override.Rate
	}
	if len(override.Extra) > 0 {
		extra := make(map[string]any, len(base.Extra)+len(override.Extra))
		maps.Copy(extra, base.Extra)
		maps.Copy(extra, override.Extra)
		base.Extra = extra
	}
	if base.Name == "" {
		base.Name = id
	}
	return base
}
