package media

import (
	"context"
	"testing"

	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeStorage map[int64]*domain.Entity

func (s nodeStorage) Load(ctx context.Context, id int64) (*domain.Entity, error) {
	return s[id], nil
}

func (s nodeStorage) Execute(ctx context.Context, q *domain.Query) ([]int64, error) {
	return nil, nil
}

type types map[string]uri.EntityStorage

func (t types) Storage(ctx context.Context, entityType string) (uri.EntityStorage, error) {
	s, ok := t[entityType]
	if !ok {
		return nil, domain.ErrPluginNotFound
	}
	return s, nil
}

func TestParentNode(t *testing.T) {
	ctx := context.Background()
	book := &domain.Entity{Type: domain.NodeEntityType, ID: 10, Label: "A book"}
	tm := types{domain.NodeEntityType: nodeStorage{10: book}}

	media := func(fields map[string]domain.FieldItemList) *domain.Entity {
		return &domain.Entity{Type: domain.MediaEntityType, ID: 1, Fields: fields}
	}

	tests := []struct {
		name  string
		media *domain.Entity
		want  *domain.Entity
	}{
		{"nil media", nil, nil},
		{"no media-of field", media(nil), nil},
		{"empty media-of field", media(map[string]domain.FieldItemList{domain.MediaOfField: {}}), nil},
		{"dangling reference", media(map[string]domain.FieldItemList{
			domain.MediaOfField: {{TargetType: domain.NodeEntityType, TargetID: 99}},
		}), nil},
		{"resolved", media(map[string]domain.FieldItemList{
			domain.MediaOfField: {{TargetType: domain.NodeEntityType, TargetID: 10}},
		}), book},
		{"target type defaults to node", media(map[string]domain.FieldItemList{
			domain.MediaOfField: {{TargetID: 10}},
		}), book},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParentNode(ctx, tm, tt.media)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.want, got)
		})
	}
}

func TestParentNodeUnknownTargetType(t *testing.T) {
	m := &domain.Entity{Type: domain.MediaEntityType, ID: 1, Fields: map[string]domain.FieldItemList{
		domain.MediaOfField: {{TargetType: "group", TargetID: 3}},
	}}

	_, err := ParentNode(context.Background(), types{}, m)
	assert.ErrorIs(t, err, domain.ErrPluginNotFound)
}
