package metadata

import (
	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	OaiQdcNamespace = "http://worldcat.org/xmlschemas/qdc-1.0/"
	OaiQdcSchema    = "http://worldcat.org/xmlschemas/qdc/1.0/qdc-1.0.xsd"
)

var dctermsProperties = []property{
	{"Abstract", "dcterms:abstract"},
	{"Access Rights", "dcterms:accessRights"},
	{"Accrual Method", "dcterms:accrualMethod"},
	{"Accrual Periodicity", "dcterms:accrualPeriodicity"},
	{"Accrual Policy", "dcterms:accrualPolicy"},
	{"Alternative Title", "dcterms:alternative"},
	{"Audience", "dcterms:audience"},
	{"Date Available", "dcterms:available"},
	{"Bibliographic Citation", "dcterms:bibliographicCitation"},
	{"Conforms To", "dcterms:conformsTo"},
	{"Date Created", "dcterms:created"},
	{"Date Accepted", "dcterms:dateAccepted"},
	{"Date Copyrighted", "dcterms:dateCopyrighted"},
	{"Date Submitted", "dcterms:dateSubmitted"},
	{"Audience Education Level", "dcterms:educationLevel"},
	{"Extent", "dcterms:extent"},
	{"Has Format", "dcterms:hasFormat"},
	{"Has Part", "dcterms:hasPart"},
	{"Has Version", "dcterms:hasVersion"},
	{"Instructional Method", "dcterms:instructionalMethod"},
	{"Is Format Of", "dcterms:isFormatOf"},
	{"Is Part Of", "dcterms:isPartOf"},
	{"Is Referenced By", "dcterms:isReferencedBy"},
	{"Is Replaced By", "dcterms:isReplacedBy"},
	{"Is Required By", "dcterms:isRequiredBy"},
	{"Date Issued", "dcterms:issued"},
	{"Is Version Of", "dcterms:isVersionOf"},
	{"License", "dcterms:license"},
	{"Mediator", "dcterms:mediator"},
	{"Medium", "dcterms:medium"},
	{"Date Modified", "dcterms:modified"},
	{"Provenance", "dcterms:provenance"},
	{"References", "dcterms:references"},
	{"Replaces", "dcterms:replaces"},
	{"Requires", "dcterms:requires"},
	{"Rights Holder", "dcterms:rightsHolder"},
	{"Spatial Coverage", "dcterms:spatial"},
	{"Table Of Contents", "dcterms:tableOfContents"},
	{"Temporal Coverage", "dcterms:temporal"},
	{"Date Valid", "dcterms:valid"},
}

// qualifiedProperties is unqualified DC followed by the dcterms refinements.
func qualifiedProperties() []property {
	return append(dcProperties(), dctermsProperties...)
}

// OaiQdc is qualified Dublin Core.
type OaiQdc struct {
	opts Options
}

func NewOaiQdc(opts Options) *OaiQdc {
	return &OaiQdc{opts: opts}
}

func (f *OaiQdc) Prefix() string    { return "oai_qdc" }
func (f *OaiQdc) Namespace() string { return OaiQdcNamespace }
func (f *OaiQdc) Schema() string    { return OaiQdcSchema }

func (f *OaiQdc) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	qdc := parent.Append("oai_qdc:qualifieddc", "")
	qdc.DeclareNamespace("oai_qdc", OaiQdcNamespace)
	qdc.DeclareNamespace("dc", DcNamespace)
	qdc.DeclareNamespace("dcterms", DctermsNamespace)
	qdc.DeclareSchemaLocation(OaiQdcNamespace, OaiQdcSchema)
	appendDublinCore(qdc, rec, f.opts, qualifiedProperties())
}
