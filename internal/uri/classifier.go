package uri

import (
	"slices"

	"github.com/pbaille/termuri/internal/domain"
)

var (
	// NarrowTypes are the field types searched when resolving a term from a URI
	NarrowTypes = []string{domain.AuthorityLinkType}

	// BroadTypes are the field types that may hold a term's URI
	BroadTypes = []string{domain.AuthorityLinkType, domain.ExternalAuthorityLinkType}
)

// URIFieldNames returns the names of fields whose type is one of types, in
// field order, followed by the external URI field. The result is a scan
// order and may repeat a name.
func URIFieldNames(fields []domain.FieldDescriptor, types ...string) []string {
	names := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if slices.Contains(types, f.Type) {
			names = append(names, f.Name)
		}
	}
	return append(names, domain.ExternalURIField)
}

// NarrowURIFieldNames returns the term fields searched by TermForURI
func NarrowURIFieldNames(fm domain.FieldMap) []string {
	return URIFieldNames(fm[domain.TermEntityType], NarrowTypes...)
}

// BroadURIFieldNames returns every term field that may contain an external URI
func BroadURIFieldNames(fm domain.FieldMap) []string {
	return URIFieldNames(fm[domain.TermEntityType], BroadTypes...)
}
