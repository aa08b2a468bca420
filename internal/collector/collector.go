package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"FinVision/internal/model"
)

// Collector routes standard-asset fetches to a per-asset source, falling back
// to the default source for assets without an override.
type Collector struct {
	Default   Fetcher
	Overrides map[model.AssetID]Fetcher
}

// NewCollector creates a Collector around the default fetcher.
func NewCollector(def Fetcher) *Collector {
	return &Collector{Default: def, Overrides: map[model.AssetID]Fetcher{}}
}

// Route sends fetches for id to f instead of the default source.
func (c *Collector) Route(id model.AssetID, f Fetcher) *Collector {
	c.Overrides[id] = f
	return c
}

// Name lists the default source and any per-asset overrides.
func (c *Collector) Name() string {
	if len(c.Overrides) == 0 {
		return c.Default.Name()
	}
	parts := []string{c.Default.Name()}
	for _, id := range model.Standard() {
		if f, ok := c.Overrides[id]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", strings.ToLower(string(id)), f.Name()))
		}
	}
	return strings.Join(parts, ",")
}

func (c *Collector) source(id model.AssetID) Fetcher {
	if f, ok := c.Overrides[id]; ok {
		return f
	}
	return c.Default
}

// FetchAsset performs exactly one outbound call through the selected source.
func (c *Collector) FetchAsset(ctx context.Context, id model.AssetID) (*model.AssetSnapshot, error) {
	if id.IsCustom() {
		return nil, fmt.Errorf("%w: %s has no market source", model.ErrUnknownAsset, id)
	}
	src := c.source(id)
	log.Info().Str("asset", string(id)).Str("source", src.Name()).Msg("fetching market data")
	snap, err := src.FetchAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s via %s: %w", id, src.Name(), err)
	}
	return snap, nil
}
