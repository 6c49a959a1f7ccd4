package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/media"
	"github.com/pbaille/termuri/internal/selection"
	"github.com/pbaille/termuri/internal/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFixture = `
fields:
  taxonomy_term:
    - {name: field_lcsh, type: authority_link}
    - {name: field_wikidata, type: field_external_authority_link}
    - {name: field_external_uri, type: link}
    - {name: field_description, type: text_long}
  media:
    - {name: field_media_of, type: entity_reference}
entities:
  - key: cats
    type: taxonomy_term
    bundle: subjects
    label: Cats
    fields:
      field_lcsh:
        - {uri: "http://id.loc.gov/authorities/subjects/sh85021262", title: Cats}
  - key: dogs
    type: taxonomy_term
    bundle: subjects
    label: Dogs
    fields:
      field_description:
        - {value: "No authority yet"}
  - key: image
    type: taxonomy_term
    bundle: resource_types
    label: Image
    fields:
      field_external_uri:
        - {uri: "http://purl.org/coar/resource_type/c_c513"}
  - key: wiki
    type: taxonomy_term
    bundle: subjects
    label: Birds
    fields:
      field_wikidata:
        - {uri: "https://www.wikidata.org/wiki/Q5113"}
  - key: draft
    type: taxonomy_term
    bundle: tags
    label: Draft
  - key: book
    type: node
    bundle: islandora_object
    label: A book about cats
  - key: cover
    type: media
    bundle: image
    label: Cover
    fields:
      field_media_of:
        - {target: book}
  - key: orphan
    type: media
    bundle: image
    label: Orphan
`

func newTestStore(t *testing.T) (*Store, map[string]*domain.Entity) {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	created, err := s.LoadFixture(context.Background(), strings.NewReader(testFixture))
	require.NoError(t, err)
	return s, created
}

func TestFieldMap(t *testing.T) {
	s, _ := newTestStore(t)

	fm, err := s.FieldMap(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.FieldDescriptor{
		{Name: "field_lcsh", Type: domain.AuthorityLinkType},
		{Name: "field_wikidata", Type: domain.ExternalAuthorityLinkType},
		{Name: domain.ExternalURIField, Type: "link"},
		{Name: "field_description", Type: "text_long"},
	}, fm[domain.TermEntityType])
	assert.Len(t, fm[domain.MediaEntityType], 1)
}

func TestStorageUnknownType(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Storage(context.Background(), "comment")
	assert.ErrorIs(t, err, domain.ErrPluginNotFound)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s, created := newTestStore(t)

	terms, err := s.Storage(ctx, domain.TermEntityType)
	require.NoError(t, err)

	cats, err := terms.Load(ctx, created["cats"].ID)
	require.NoError(t, err)
	require.NotNil(t, cats)
	assert.Equal(t, "Cats", cats.Label)
	assert.Equal(t, "subjects", cats.Bundle)
	assert.NotEmpty(t, cats.UUID)
	assert.True(t, cats.HasField(domain.ExternalURIField))
	assert.True(t, cats.Get(domain.ExternalURIField).IsEmpty())
	assert.Equal(t, "Cats", cats.Get("field_lcsh")[0].Title)

	t.Run("missing id", func(t *testing.T) {
		got, err := terms.Load(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("other entity type", func(t *testing.T) {
		got, err := terms.Load(ctx, created["book"].ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCreateEntityRejectsUnknownField(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CreateEntity(context.Background(), &domain.Entity{
		Type:   domain.TermEntityType,
		Bundle: "subjects",
		Label:  "Fish",
		Fields: map[string]domain.FieldItemList{"field_nope": {{Value: "x"}}},
	})
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	s, created := newTestStore(t)

	terms, err := s.Storage(ctx, domain.TermEntityType)
	require.NoError(t, err)

	ids, err := terms.Execute(ctx, domain.NewQuery(domain.TermEntityType).
		OrCondition("field_lcsh", "uri", "http://purl.org/coar/resource_type/c_c513").
		OrCondition(domain.ExternalURIField, "uri", "http://purl.org/coar/resource_type/c_c513"))
	require.NoError(t, err)
	assert.Equal(t, []int64{created["image"].ID}, ids)

	_, err = terms.Execute(ctx, domain.NewQuery(domain.TermEntityType).OrCondition("field_lcsh", "uri; DROP", "x"))
	assert.Error(t, err)
}

func TestReferenceableEntities(t *testing.T) {
	ctx := context.Background()
	s, created := newTestStore(t)

	t.Run("all terms grouped by vocabulary", func(t *testing.T) {
		got, err := s.ReferenceableEntities(ctx, domain.SelectionRequest{})
		require.NoError(t, err)
		assert.Equal(t, domain.ReferenceOptions{
			{Vocabulary: "resource_types", Terms: []domain.TermOption{{ID: created["image"].ID, Label: "Image"}}},
			{Vocabulary: "subjects", Terms: []domain.TermOption{
				{ID: created["wiki"].ID, Label: "Birds"},
				{ID: created["cats"].ID, Label: "Cats"},
				{ID: created["dogs"].ID, Label: "Dogs"},
			}},
			{Vocabulary: "tags", Terms: []domain.TermOption{{ID: created["draft"].ID, Label: "Draft"}}},
		}, got)
	})

	t.Run("starts with", func(t *testing.T) {
		got, err := s.ReferenceableEntities(ctx, domain.SelectionRequest{Match: "d", MatchOperator: domain.MatchStartsWith})
		require.NoError(t, err)
		assert.Equal(t, 2, got.Count())
	})

	t.Run("target bundles and limit", func(t *testing.T) {
		got, err := s.ReferenceableEntities(ctx, domain.SelectionRequest{TargetBundles: []string{"subjects"}, Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Terms, 2)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		got, err := s.ReferenceableEntities(ctx, domain.SelectionRequest{Match: "%"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown operator", func(t *testing.T) {
		_, err := s.ReferenceableEntities(ctx, domain.SelectionRequest{Match: "x", MatchOperator: "REGEX"})
		assert.Error(t, err)
	})
}

// The lookup components run unchanged on top of the SQLite backend
func TestLookupsAgainstStore(t *testing.T) {
	ctx := context.Background()
	s, created := newTestStore(t)
	r := uri.NewResolver(s, s, nil)

	got, err := r.TermForURI(ctx, "http://id.loc.gov/authorities/subjects/sh85021262")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created["cats"].ID, got.ID)

	got, err = r.TermForURI(ctx, "https://www.wikidata.org/wiki/Q5113")
	require.NoError(t, err)
	assert.Nil(t, got)

	u, err := r.URIForTerm(ctx, created["image"])
	require.NoError(t, err)
	assert.Equal(t, "http://purl.org/coar/resource_type/c_c513", u)

	sel := selection.NewExternalURISelection(s, r, nil)
	opts, err := sel.ReferenceableEntities(ctx, domain.SelectionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceOptions{
		{Vocabulary: "resource_types", Terms: []domain.TermOption{{ID: created["image"].ID, Label: "Image"}}},
		{Vocabulary: "subjects", Terms: []domain.TermOption{
			{ID: created["wiki"].ID, Label: "Birds"},
			{ID: created["cats"].ID, Label: "Cats"},
		}},
	}, opts)

	parent, err := media.ParentNode(ctx, s, created["cover"])
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, created["book"].ID, parent.ID)

	parent, err = media.ParentNode(ctx, s, created["orphan"])
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestURIEdgeCasesAgainstStore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	r := uri.NewResolver(s, s, nil)

	a, err := s.CreateEntity(ctx, &domain.Entity{
		Type:   domain.TermEntityType,
		Bundle: "subjects",
		Label:  "A",
		Fields: map[string]domain.FieldItemList{
			"field_lcsh":            {{Title: "A", Value: "oops"}},
			domain.ExternalURIField: {{URI: "https://example.org/a"}},
		},
	})
	require.NoError(t, err)
	_, err = s.CreateEntity(ctx, &domain.Entity{
		Type:   domain.TermEntityType,
		Bundle: "subjects",
		Label:  "B",
		Fields: map[string]domain.FieldItemList{domain.ExternalURIField: {{Value: "nouri"}}},
	})
	require.NoError(t, err)

	terms, err := s.Storage(ctx, domain.TermEntityType)
	require.NoError(t, err)
	loaded, err := terms.Load(ctx, a.ID)
	require.NoError(t, err)

	u, err := r.URIForTerm(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a", u)

	got, err := r.TermForURI(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFieldTypeOrder(t *testing.T) {
	fx := Fixture{
		EntityTypes: []FixtureEntityType{{ID: "group"}},
		Fields: map[string][]domain.FieldDescriptor{
			"zeta":                {},
			"alpha":               {},
			"group":               {},
			domain.NodeEntityType: {},
			domain.TermEntityType: {},
		},
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{domain.TermEntityType, domain.NodeEntityType, "group", "alpha", "zeta"}, fieldTypeOrder(fx))
	}
}
