package metadata

import (
	"strings"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	OaiDcNamespace   = "http://www.openarchives.org/OAI/2.0/oai_dc/"
	OaiDcSchema      = "http://www.openarchives.org/OAI/2.0/oai_dc.xsd"
	DcNamespace      = "http://purl.org/dc/elements/1.1/"
	DctermsNamespace = "http://purl.org/dc/terms/"
)

// DcElements are the 15 unqualified Dublin Core elements in schema order.
var DcElements = []string{
	"Title", "Creator", "Subject", "Description", "Publisher",
	"Contributor", "Date", "Type", "Format", "Identifier",
	"Source", "Language", "Relation", "Coverage", "Rights",
}

// property maps an element name of the record store to a qualified tag.
type property struct {
	element string
	tag     string
}

func dcProperties() []property {
	props := make([]property, len(DcElements))
	for i, e := range DcElements {
		props[i] = property{element: e, tag: "dc:" + strings.ToLower(e)}
	}
	return props
}

// appendDublinCore writes props in order. The item type goes in front of the
// dc:type texts, the browse and file URLs after the dc:identifier texts.
func appendDublinCore(node xmldoc.Node, rec *repo.Record, opts Options, props []property) {
	for _, p := range props {
		if p.tag == "dc:type" && opts.ExposeItemType && rec.ItemType != "" {
			node.Append("dc:type", rec.ItemType)
		}

		for _, text := range rec.ElementTexts(repo.DublinCore, p.element) {
			node.Append(p.tag, text)
		}

		if p.tag == "dc:identifier" {
			node.Append("dc:identifier", rec.URL)
			if opts.ExposeFiles {
				for _, f := range rec.Files {
					node.Append("dc:identifier", f.URL)
				}
			}
		}
	}
}

type OaiDc struct {
	opts Options
}

func NewOaiDc(opts Options) *OaiDc {
	return &OaiDc{opts: opts}
}

func (f *OaiDc) Prefix() string    { return "oai_dc" }
func (f *OaiDc) Namespace() string { return OaiDcNamespace }
func (f *OaiDc) Schema() string    { return OaiDcSchema }

func (f *OaiDc) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	dc := newOaiDcElement(parent)
	appendDublinCore(dc, rec, f.opts, dcProperties())
}

func newOaiDcElement(parent xmldoc.Node) xmldoc.Node {
	dc := parent.Append("oai_dc:dc", "")
	dc.DeclareNamespace("oai_dc", OaiDcNamespace)
	dc.DeclareNamespace("dc", DcNamespace)
	dc.DeclareSchemaLocation(OaiDcNamespace, OaiDcSchema)
	return dc
}

// AppendSetDescription appends an oai_dc block holding the descriptions of a
// set, as used inside setDescription.
func AppendSetDescription(parent xmldoc.Node, descriptions []string) {
	dc := newOaiDcElement(parent)
	for _, d := range descriptions {
		dc.Append("dc:description", d)
	}
}
