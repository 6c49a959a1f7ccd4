package store

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pbaille/termuri/internal/domain"
	"gopkg.in/yaml.v3"
)

// Fixture describes entity types, fields and entities to seed a store with
type Fixture struct {
	EntityTypes []FixtureEntityType                 `yaml:"entity_types"`
	Fields      map[string][]domain.FieldDescriptor `yaml:"fields"`
	Entities    []FixtureEntity                     `yaml:"entities"`
}

// FixtureEntityType registers an additional entity type
type FixtureEntityType struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// FixtureEntity is an entity to create. Key names it so that later
// reference items can point at it with Target.
type FixtureEntity struct {
	Key    string                   `yaml:"key"`
	Type   string                   `yaml:"type"`
	Bundle string                   `yaml:"bundle"`
	Label  string                   `yaml:"label"`
	Fields map[string][]FixtureItem `yaml:"fields"`
}

// FixtureItem is a field item, optionally referencing a keyed entity
type FixtureItem struct {
	domain.FieldItem `yaml:",inline"`
	Target           string `yaml:"target,omitempty"`
}

// LoadFixture reads a YAML fixture and creates everything it describes.
// Entities are created in file order and the created entities are returned
// by key.
func (s *Store) LoadFixture(ctx context.Context, r io.Reader) (map[string]*domain.Entity, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	for _, et := range fx.EntityTypes {
		if err := s.RegisterEntityType(ctx, et.ID, et.Label); err != nil {
			return nil, err
		}
	}

	// Field order within an entity type is the file order
	for _, entityType := range fieldTypeOrder(fx) {
		for _, f := range fx.Fields[entityType] {
			if err := s.AddField(ctx, entityType, f.Name, f.Type); err != nil {
				return nil, err
			}
		}
	}

	created := make(map[string]*domain.Entity)
	for i, fe := range fx.Entities {
		e := &domain.Entity{
			Type:   fe.Type,
			Bundle: fe.Bundle,
			Label:  fe.Label,
			Fields: make(map[string]domain.FieldItemList, len(fe.Fields)),
		}
		for name, items := range fe.Fields {
			list := make(domain.FieldItemList, 0, len(items))
			for _, item := range items {
				if item.Target != "" {
					target, ok := created[item.Target]
					if !ok {
						return nil, fmt.Errorf("entity %d: unknown target %q", i, item.Target)
					}
					item.TargetType = target.Type
					item.TargetID = target.ID
				}
				list = append(list, item.FieldItem)
			}
			e.Fields[name] = list
		}

		entity, err := s.CreateEntity(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("entity %d (%s): %w", i, fe.Label, err)
		}
		if fe.Key != "" {
			created[fe.Key] = entity
		}
	}

	s.logger.Info("fixture loaded", "fields", len(fx.Fields), "entities", len(fx.Entities))
	return created, nil
}

// fieldTypeOrder returns the entity types of fx.Fields: built-in types,
// then the fixture's registered types in file order, then any others by name
func fieldTypeOrder(fx Fixture) []string {
	order := []string{domain.TermEntityType, domain.MediaEntityType, domain.NodeEntityType}
	for _, et := range fx.EntityTypes {
		order = append(order, et.ID)
	}

	seen := make(map[string]bool)
	var out []string
	for _, t := range order {
		if _, ok := fx.Fields[t]; ok && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	var rest []string
	for t := range fx.Fields {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
