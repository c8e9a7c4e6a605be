// Package metadata renders records into the metadata formats the repository
// disseminates. Formats are registered statically; a Registry enumerates them
// and looks them up by metadataPrefix.
package metadata

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

var ErrUnknownFormat = errors.New("unknown metadata format")

// Format is one metadata crosswalk.
type Format interface {
	Prefix() string
	Namespace() string
	Schema() string

	// AppendMetadata appends the record, in this format, as a single child
	// of parent. It must not modify rec.
	AppendMetadata(rec *repo.Record, parent xmldoc.Node)
}

// Options are shared by all formats.
type Options struct {
	// Identifier maps a record id to its OAI identifier.
	Identifier func(id int64) string

	// ExposeFiles adds the URLs (and for METS, descriptions) of attached
	// files to the output.
	ExposeFiles bool

	// ExposeItemType emits the item type name as the first dc:type.
	ExposeItemType bool
}

func (o Options) identifier(id int64) string {
	if o.Identifier == nil {
		return strconv.FormatInt(id, 10)
	}
	return o.Identifier(id)
}

type Registry struct {
	formats  []Format
	byPrefix map[string]Format
}

func NewRegistry(formats ...Format) (*Registry, error) {
	r := &Registry{byPrefix: make(map[string]Format, len(formats))}
	for _, f := range formats {
		if _, ok := r.byPrefix[f.Prefix()]; ok {
			return nil, fmt.Errorf("duplicate metadata prefix %q", f.Prefix())
		}
		r.byPrefix[f.Prefix()] = f
		r.formats = append(r.formats, f)
	}
	return r, nil
}

// Default returns a registry with every built-in format, oai_dc first.
func Default(opts Options) *Registry {
	r, err := NewRegistry(
		NewOaiDc(opts),
		NewOaiQdc(opts),
		NewMods(opts),
		NewMets(opts),
		NewCdwaLite(opts),
		NewRdf(opts),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(prefix string) (Format, bool) {
	f, ok := r.byPrefix[prefix]
	return f, ok
}

// Formats returns the registered formats in registration order.
func (r *Registry) Formats() []Format {
	return append([]Format(nil), r.formats...)
}

func (r *Registry) Len() int {
	return len(r.formats)
}

func (r *Registry) Render(prefix string, rec *repo.Record, parent xmldoc.Node) error {
	f, ok := r.byPrefix[prefix]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFormat, prefix)
	}
	f.AppendMetadata(rec, parent)
	return nil
}

// DeclareAll appends one metadataFormat element per registered format.
func (r *Registry) DeclareAll(parent xmldoc.Node) {
	for _, f := range r.formats {
		parent.AppendWithChildren("metadataFormat",
			xmldoc.Child{Name: "metadataPrefix", Text: f.Prefix()},
			xmldoc.Child{Name: "schema", Text: f.Schema()},
			xmldoc.Child{Name: "metadataNamespace", Text: f.Namespace()},
		)
	}
}
