// Package media looks up the content a media item belongs to.
package media

import (
	"context"
	"fmt"

	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/uri"
)

// ParentNode returns the node referenced by the media's media-of field, or
// nil when the field is missing, empty or points at a deleted entity.
func ParentNode(ctx context.Context, types uri.EntityTypeManager, m *domain.Entity) (*domain.Entity, error) {
	if !m.HasField(domain.MediaOfField) {
		return nil, nil
	}
	field := m.Get(domain.MediaOfField)
	if field.IsEmpty() {
		return nil, nil
	}

	ref, err := field.First()
	if err != nil {
		return nil, fmt.Errorf("media %d: %w", m.ID, err)
	}
	if ref.TargetID == 0 {
		return nil, nil
	}

	targetType := ref.TargetType
	if targetType == "" {
		targetType = domain.NodeEntityType
	}
	storage, err := types.Storage(ctx, targetType)
	if err != nil {
		return nil, err
	}

	parent, err := storage.Load(ctx, ref.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", targetType, ref.TargetID, err)
	}
	return parent, nil
}
