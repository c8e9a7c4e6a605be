package metadata

import (
	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	RdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RdfSchema    = "http://www.openarchives.org/OAI/2.0/rdf.xsd"
)

// Rdf describes the record as one rdf:Description about its OAI identifier.
type Rdf struct {
	opts Options
}

func NewRdf(opts Options) *Rdf {
	return &Rdf{opts: opts}
}

func (f *Rdf) Prefix() string    { return "rdf" }
func (f *Rdf) Namespace() string { return RdfNamespace }
func (f *Rdf) Schema() string    { return RdfSchema }

func (f *Rdf) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	rdf := parent.Append("rdf:RDF", "")
	rdf.DeclareNamespace("rdf", RdfNamespace)
	rdf.DeclareNamespace("dc", DcNamespace)
	rdf.DeclareNamespace("dcterms", DctermsNamespace)
	rdf.DeclareSchemaLocation(RdfNamespace, RdfSchema)

	desc := rdf.Append("rdf:Description", "")
	desc.SetAttr("rdf:about", f.opts.identifier(rec.ID))

	for _, p := range qualifiedProperties() {
		for _, text := range rec.ElementTexts(repo.DublinCore, p.element) {
			desc.Append(p.tag, text)
		}
	}
}
