package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/termuri/internal/domain"
	"github.com/pbaille/termuri/internal/uri"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a new Store with the given database path
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterEntityType makes an entity type available for storage
func (s *Store) RegisterEntityType(ctx context.Context, id, label string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO entity_types (id, label) VALUES (?, ?)",
		id, label,
	)
	if err != nil {
		return fmt.Errorf("register entity type: %w", err)
	}
	return nil
}

func (s *Store) hasEntityType(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entity_types WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("find entity type: %w", err)
	}
	return n > 0, nil
}

// AddField attaches a field of the given type to an entity type
func (s *Store) AddField(ctx context.Context, entityType, name, fieldType string) error {
	ok, err := s.hasEntityType(ctx, entityType)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", entityType, domain.ErrPluginNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO field_config (entity_type, field_name, field_type) VALUES (?, ?, ?)",
		entityType, name, fieldType,
	)
	if err != nil {
		return fmt.Errorf("insert field %s.%s: %w", entityType, name, err)
	}
	return nil
}

// FieldMap returns the fields of every entity type in registration order
func (s *Store) FieldMap(ctx context.Context) (domain.FieldMap, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT entity_type, field_name, field_type FROM field_config ORDER BY seq",
	)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	fm := make(domain.FieldMap)
	for rows.Next() {
		var entityType string
		var f domain.FieldDescriptor
		if err := rows.Scan(&entityType, &f.Name, &f.Type); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fm[entityType] = append(fm[entityType], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	return fm, nil
}

// CreateEntity stores a new entity and returns it with its id and uuid set.
// Empty field items are dropped.
func (s *Store) CreateEntity(ctx context.Context, e *domain.Entity) (*domain.Entity, error) {
	ok, err := s.hasEntityType(ctx, e.Type)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", e.Type, domain.ErrPluginNotFound)
	}

	fm, err := s.FieldMap(ctx)
	if err != nil {
		return nil, err
	}
	configured := make(map[string]bool)
	for _, f := range fm[e.Type] {
		configured[f.Name] = true
	}
	for name := range e.Fields {
		if !configured[name] {
			return nil, fmt.Errorf("field %s is not configured on %s", name, e.Type)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO entities (type, uuid, bundle, label, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Type, id, e.Bundle, e.Label, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	entityID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("entity id: %w", err)
	}

	fields := make(map[string]domain.FieldItemList, len(fm[e.Type]))
	for _, f := range fm[e.Type] {
		fields[f.Name] = domain.FieldItemList{}
	}
	for name, items := range e.Fields {
		delta := 0
		for _, item := range items {
			if item.IsEmpty() {
				continue
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO field_items (entity_id, field_name, delta, uri, title, target_type, target_id, value)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				entityID, name, delta, item.URI, item.Title, item.TargetType, item.TargetID, item.Value,
			)
			if err != nil {
				return nil, fmt.Errorf("insert field item %s: %w", name, err)
			}
			fields[name] = append(fields[name], item)
			delta++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("entity created", "type", e.Type, "id", entityID, "bundle", e.Bundle)

	return &domain.Entity{
		Type:   e.Type,
		ID:     entityID,
		UUID:   id,
		Bundle: e.Bundle,
		Label:  e.Label,
		Fields: fields,
	}, nil
}

// Storage returns the storage of an entity type
func (s *Store) Storage(ctx context.Context, entityType string) (uri.EntityStorage, error) {
	ok, err := s.hasEntityType(ctx, entityType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", entityType, domain.ErrPluginNotFound)
	}
	return &EntityStorage{store: s, entityType: entityType}, nil
}

// EntityStorage reads entities of a single type
type EntityStorage struct {
	store      *Store
	entityType string
}

// Load retrieves an entity by id with all its configured fields.
// Returns nil, nil if no such entity exists.
func (es *EntityStorage) Load(ctx context.Context, id int64) (*domain.Entity, error) {
	db := es.store.db

	var e domain.Entity
	err := db.QueryRowContext(ctx,
		"SELECT id, type, uuid, bundle, label FROM entities WHERE id = ? AND type = ?",
		id, es.entityType,
	).Scan(&e.ID, &e.Type, &e.UUID, &e.Bundle, &e.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}

	e.Fields = make(map[string]domain.FieldItemList)
	rows, err := db.QueryContext(ctx,
		"SELECT field_name FROM field_config WHERE entity_type = ? ORDER BY seq",
		es.entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("get entity fields: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan field: %w", err)
		}
		e.Fields[name] = domain.FieldItemList{}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("get entity fields: %w", err)
	}

	items, err := db.QueryContext(ctx, `
		SELECT field_name, uri, title, target_type, target_id, value
		FROM field_items
		WHERE entity_id = ?
		ORDER BY field_name, delta
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get field items: %w", err)
	}
	defer items.Close()

	for items.Next() {
		var name string
		var item domain.FieldItem
		if err := items.Scan(&name, &item.URI, &item.Title, &item.TargetType, &item.TargetID, &item.Value); err != nil {
			return nil, fmt.Errorf("scan field item: %w", err)
		}
		e.Fields[name] = append(e.Fields[name], item)
	}

	return &e, items.Err()
}

// queryColumns maps queryable field properties to field_items columns
var queryColumns = map[string]string{
	"uri":       "uri",
	"title":     "title",
	"target_id": "target_id",
	"value":     "value",
}

// Execute returns the ids of entities matching any condition of q, by id
func (es *EntityStorage) Execute(ctx context.Context, q *domain.Query) ([]int64, error) {
	if q.EntityType != "" && q.EntityType != es.entityType {
		return nil, fmt.Errorf("query for %s run against %s storage", q.EntityType, es.entityType)
	}
	if len(q.Or) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(q.Or))
	args := []any{es.entityType}
	for _, c := range q.Or {
		col, ok := queryColumns[c.Property]
		if !ok {
			return nil, fmt.Errorf("unsupported property %q on %s", c.Property, c.Field)
		}
		clauses = append(clauses, fmt.Sprintf("(fi.field_name = ? AND fi.%s = ?)", col))
		args = append(args, c.Field, c.Value)
	}

	rows, err := es.store.db.QueryContext(ctx, `
		SELECT DISTINCT e.id
		FROM entities e
		JOIN field_items fi ON fi.entity_id = e.id
		WHERE e.type = ? AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY e.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ReferenceableEntities returns terms whose label matches req, grouped by
// vocabulary and ordered by vocabulary then label
func (s *Store) ReferenceableEntities(ctx context.Context, req domain.SelectionRequest) (domain.ReferenceOptions, error) {
	query := "SELECT id, bundle, label FROM entities WHERE type = ?"
	args := []any{domain.TermEntityType}

	if req.Match != "" {
		cond, arg, err := labelCondition(req.MatchOperator, req.Match)
		if err != nil {
			return nil, err
		}
		query += " AND " + cond
		args = append(args, arg)
	}

	if len(req.TargetBundles) > 0 {
		query += " AND bundle IN (?" + strings.Repeat(", ?", len(req.TargetBundles)-1) + ")"
		for _, b := range req.TargetBundles {
			args = append(args, b)
		}
	}

	query += " ORDER BY bundle, label, id"
	if req.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, req.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("referenceable terms: %w", err)
	}
	defer rows.Close()

	var opts domain.ReferenceOptions
	for rows.Next() {
		var opt domain.TermOption
		var bundle string
		if err := rows.Scan(&opt.ID, &bundle, &opt.Label); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		if n := len(opts); n == 0 || opts[n-1].Vocabulary != bundle {
			opts = append(opts, domain.VocabularyOptions{Vocabulary: bundle})
		}
		last := &opts[len(opts)-1]
		last.Terms = append(last.Terms, opt)
	}

	return opts, rows.Err()
}

func labelCondition(op, match string) (string, string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(match)
	switch strings.ToUpper(op) {
	case "", domain.MatchContains:
		return `label LIKE ? ESCAPE '\'`, "%" + escaped + "%", nil
	case domain.MatchStartsWith:
		return `label LIKE ? ESCAPE '\'`, escaped + "%", nil
	case domain.MatchEndsWith:
		return `label LIKE ? ESCAPE '\'`, "%" + escaped, nil
	case domain.MatchEquals:
		return "label = ?", match, nil
	default:
		return "", "", fmt.Errorf("unsupported match operator %q", op)
	}
}
