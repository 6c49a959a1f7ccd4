// Package uri resolves taxonomy terms to and from their external URIs.
package uri

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pbaille/termuri/internal/domain"
)

// EntityStorage loads entities of one type and runs queries against them
type EntityStorage interface {
	// Load returns the entity with the given id, or nil if it does not exist
	Load(ctx context.Context, id int64) (*domain.Entity, error)
	// Execute returns the ids of entities matching any condition of q
	Execute(ctx context.Context, q *domain.Query) ([]int64, error)
}

// EntityTypeManager hands out storage per entity type
type EntityTypeManager interface {
	// Storage fails with domain.ErrPluginNotFound for unknown entity types
	Storage(ctx context.Context, entityType string) (EntityStorage, error)
}

// FieldMapProvider returns a snapshot of the configured fields
type FieldMapProvider interface {
	FieldMap(ctx context.Context) (domain.FieldMap, error)
}

// Resolver maps terms to URIs and back
type Resolver struct {
	types  EntityTypeManager
	fields FieldMapProvider
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default.
func NewResolver(types EntityTypeManager, fields FieldMapProvider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{types: types, fields: fields, logger: logger}
}

// TermForURI returns the term whose authority link or external URI field
// equals uri, or nil if there is none. With several matches the first id
// returned by storage wins.
func (r *Resolver) TermForURI(ctx context.Context, uri string) (*domain.Entity, error) {
	// An empty URI never identifies a term
	if uri == "" {
		return nil, nil
	}

	fm, err := r.fields.FieldMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("field map: %w", err)
	}

	storage, err := r.types.Storage(ctx, domain.TermEntityType)
	if err != nil {
		return nil, err
	}

	q := domain.NewQuery(domain.TermEntityType)
	for _, field := range NarrowURIFieldNames(fm) {
		q.OrCondition(field, "uri", uri)
	}

	ids, err := storage.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	if len(ids) == 0 {
		r.logger.Debug("no term for uri", "uri", uri)
		return nil, nil
	}
	if len(ids) > 1 {
		r.logger.Debug("several terms share uri", "uri", uri, "ids", ids)
	}

	term, err := storage.Load(ctx, ids[0])
	if err != nil {
		return nil, fmt.Errorf("load term %d: %w", ids[0], err)
	}
	return term, nil
}

// URIForTerm returns the URI of the first populated URI field of term, or
// "" if term is nil or has none.
func (r *Resolver) URIForTerm(ctx context.Context, term *domain.Entity) (string, error) {
	if term == nil {
		return "", nil
	}

	fm, err := r.fields.FieldMap(ctx)
	if err != nil {
		return "", fmt.Errorf("field map: %w", err)
	}
	return uriForTerm(BroadURIFieldNames(fm), term), nil
}

func uriForTerm(fieldNames []string, term *domain.Entity) string {
	for _, name := range fieldNames {
		if !term.HasField(name) {
			continue
		}
		if u := term.Get(name).FirstURI(); u != "" {
			return u
		}
	}
	return ""
}

// FilterReferenceable drops terms without a URI from opts, then drops
// vocabularies left empty. Order of what remains is preserved.
func (r *Resolver) FilterReferenceable(ctx context.Context, opts domain.ReferenceOptions) (domain.ReferenceOptions, error) {
	storage, err := r.types.Storage(ctx, domain.TermEntityType)
	if err != nil {
		return nil, err
	}

	fm, err := r.fields.FieldMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("field map: %w", err)
	}
	fieldNames := BroadURIFieldNames(fm)

	filtered := make(domain.ReferenceOptions, 0, len(opts))
	for _, vocab := range opts {
		kept := make([]domain.TermOption, 0, len(vocab.Terms))
		for _, opt := range vocab.Terms {
			term, err := storage.Load(ctx, opt.ID)
			if err != nil {
				return nil, fmt.Errorf("load term %d: %w", opt.ID, err)
			}
			if term == nil {
				continue
			}
			if uriForTerm(fieldNames, term) == "" {
				continue
			}
			kept = append(kept, opt)
		}
		if len(kept) == 0 {
			r.logger.Debug("vocabulary has no term with uri", "vocabulary", vocab.Vocabulary)
			continue
		}
		filtered = append(filtered, domain.VocabularyOptions{Vocabulary: vocab.Vocabulary, Terms: kept})
	}
	return filtered, nil
}
