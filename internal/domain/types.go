package domain

import "strings"

// Entity types known to the lookup logic
const (
	TermEntityType  = "taxonomy_term"
	MediaEntityType = "media"
	NodeEntityType  = "node"
)

// Well-known field names
const (
	ExternalURIField = "field_external_uri"
	MediaOfField     = "field_media_of"
)

// Field type tags that can hold a URI
const (
	AuthorityLinkType         = "authority_link"
	ExternalAuthorityLinkType = "field_external_authority_link"
)

// Entity is a stored content entity: a term, a media item or a node
type Entity struct {
	Type   string                   `json:"type"`
	ID     int64                    `json:"id"`
	UUID   string                   `json:"uuid"`
	Bundle string                   `json:"bundle"`
	Label  string                   `json:"label"`
	Fields map[string]FieldItemList `json:"fields,omitempty"`
}

// HasField reports whether the field is attached to the entity
func (e *Entity) HasField(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Fields[name]
	return ok
}

// Get returns the items of a field, nil if the field is not attached
func (e *Entity) Get(name string) FieldItemList {
	if e == nil {
		return nil
	}
	return e.Fields[name]
}

// FieldItem is a single value of a field. Link fields use URI and Title,
// reference fields use TargetType and TargetID, plain fields use Value.
type FieldItem struct {
	URI        string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	TargetType string `json:"target_type,omitempty" yaml:"target_type,omitempty"`
	TargetID   int64  `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Value      string `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsEmpty reports whether the item carries no value
func (i FieldItem) IsEmpty() bool {
	return i.URI == "" && i.TargetID == 0 && i.Value == ""
}

// FieldItemList holds the items of one field
type FieldItemList []FieldItem

// IsEmpty reports whether the list has no non-empty item
func (l FieldItemList) IsEmpty() bool {
	for _, item := range l {
		if !item.IsEmpty() {
			return false
		}
	}
	return true
}

// FirstURI returns the URI of the first item that has one, or "".
// Items without a URI do not count as link values.
func (l FieldItemList) FirstURI() string {
	for _, item := range l {
		if item.URI != "" {
			return item.URI
		}
	}
	return ""
}

// First returns the first item of the list
func (l FieldItemList) First() (FieldItem, error) {
	if len(l) == 0 {
		return FieldItem{}, ErrMissingData
	}
	return l[0], nil
}

// FieldDescriptor describes a field attached to an entity type
type FieldDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// FieldMap maps entity type to its fields, in registration order
type FieldMap map[string][]FieldDescriptor

// Condition compares field.property against a value
type Condition struct {
	Field    string
	Property string
	Value    string
}

// Query is a disjunctive condition group against one entity type
type Query struct {
	EntityType string
	Or         []Condition
}

// NewQuery starts a query against an entity type
func NewQuery(entityType string) *Query {
	return &Query{EntityType: entityType}
}

// OrCondition adds a condition to the disjunction
func (q *Query) OrCondition(field, property, value string) *Query {
	q.Or = append(q.Or, Condition{Field: field, Property: property, Value: value})
	return q
}

// TermOption is a selectable term with its display label
type TermOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// VocabularyOptions groups selectable terms of one vocabulary
type VocabularyOptions struct {
	Vocabulary string       `json:"vocabulary"`
	Terms      []TermOption `json:"terms"`
}

// ReferenceOptions is the ordered candidate set of a reference selection
type ReferenceOptions []VocabularyOptions

// Count returns the number of term options across all vocabularies
func (o ReferenceOptions) Count() int {
	n := 0
	for _, v := range o {
		n += len(v.Terms)
	}
	return n
}

// Match operators for label search
const (
	MatchContains   = "CONTAINS"
	MatchStartsWith = "STARTS_WITH"
	MatchEndsWith   = "ENDS_WITH"
	MatchEquals     = "="
)

// ValidMatchOperator reports whether op is a supported label match operator.
// The empty operator means CONTAINS.
func ValidMatchOperator(op string) bool {
	switch strings.ToUpper(op) {
	case "", MatchContains, MatchStartsWith, MatchEndsWith, MatchEquals:
		return true
	}
	return false
}

// SelectionRequest narrows the referenceable terms by label and vocabulary
type SelectionRequest struct {
	Match         string
	MatchOperator string
	Limit         int
	TargetBundles []string
}
