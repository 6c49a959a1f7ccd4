// Package selection provides the reference selection that only offers
// taxonomy terms carrying an external URI.
package selection

import (
	"context"
	"fmt"

	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/metrics"
)

// Plugin metadata of the external URI selection
const (
	PluginID     = "islandora:external_uri"
	PluginLabel  = "Taxonomy Term with external URI selection"
	PluginGroup  = "islandora"
	PluginWeight = 1
)

// Info describes the selection handler to clients choosing one
type Info struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Group       string   `json:"group"`
	Weight      int      `json:"weight"`
	EntityTypes []string `json:"entity_types"`
}

// Describe returns the metadata of the external URI selection
func Describe() Info {
	return Info{
		ID:          PluginID,
		Label:       PluginLabel,
		Group:       PluginGroup,
		Weight:      PluginWeight,
		EntityTypes: []string{domain.TermEntityType},
	}
}

// Provider supplies the terms a reference field may point to
type Provider interface {
	ReferenceableEntities(ctx context.Context, req domain.SelectionRequest) (domain.ReferenceOptions, error)
}

// Filter prunes candidate options
type Filter interface {
	FilterReferenceable(ctx context.Context, opts domain.ReferenceOptions) (domain.ReferenceOptions, error)
}

// ExternalURISelection offers the base provider's terms that have a URI
type ExternalURISelection struct {
	base    Provider
	filter  Filter
	metrics *metrics.Metrics
}

// NewExternalURISelection wraps base with filter. m may be nil.
func NewExternalURISelection(base Provider, filter Filter, m *metrics.Metrics) *ExternalURISelection {
	return &ExternalURISelection{base: base, filter: filter, metrics: m}
}

// ReferenceableEntities returns the base options without terms lacking a URI
func (s *ExternalURISelection) ReferenceableEntities(ctx context.Context, req domain.SelectionRequest) (domain.ReferenceOptions, error) {
	opts, err := s.base.ReferenceableEntities(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("base selection: %w", err)
	}

	filtered, err := s.filter.FilterReferenceable(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("filter selection: %w", err)
	}

	s.metrics.ObserveSelection(opts.Count(), filtered.Count())
	return filtered, nil
}
