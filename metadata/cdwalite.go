package metadata

import (
	"strconv"
	"strings"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	CdwaLiteNamespace = "http://www.getty.edu/CDWA/CDWALite"
	CdwaLiteSchema    = "http://www.getty.edu/CDWA/CDWALite/CDWALite-xsd-public-v1-1.xsd"
)

const unknown = "Unknown"

// CdwaLite maps Dublin Core onto CDWA Lite. Required elements without a
// source value are filled with "Unknown" or "not applicable".
type CdwaLite struct {
	opts Options
}

func NewCdwaLite(opts Options) *CdwaLite {
	return &CdwaLite{opts: opts}
}

func (f *CdwaLite) Prefix() string    { return "cdwalite" }
func (f *CdwaLite) Namespace() string { return CdwaLiteNamespace }
func (f *CdwaLite) Schema() string    { return CdwaLiteSchema }

func orUnknown(texts []string) []string {
	if len(texts) == 0 {
		return []string{unknown}
	}
	return texts
}

func (f *CdwaLite) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	dc := func(element string) []string {
		return rec.ElementTexts(repo.DublinCore, element)
	}

	wrap := parent.Append("cdwalite:cdwaliteWrap", "")
	wrap.DeclareNamespace("cdwalite", CdwaLiteNamespace)
	wrap.DeclareSchemaLocation(CdwaLiteNamespace, CdwaLiteSchema)

	cdwalite := wrap.Append("cdwalite:cdwalite", "")
	descriptive := cdwalite.Append("cdwalite:descriptiveMetadata", "")

	types := descriptive.Append("cdwalite:objectWorkTypeWrap", "")
	for _, t := range orUnknown(dc("Type")) {
		types.Append("cdwalite:objectWorkType", t)
	}

	titles := descriptive.Append("cdwalite:titleWrap", "")
	for _, t := range orUnknown(dc("Title")) {
		titles.Append("cdwalite:titleSet", "").Append("cdwalite:title", t)
	}

	creators := orUnknown(dc("Creator"))
	descriptive.Append("cdwalite:displayCreator", strings.Join(creators, ", "))
	indexing := descriptive.Append("cdwalite:indexingCreatorWrap", "")
	for _, c := range creators {
		set := indexing.Append("cdwalite:indexingCreatorSet", "")
		set.Append("cdwalite:nameCreatorSet", "").Append("cdwalite:nameCreator", c)
		set.Append("cdwalite:roleCreator", unknown)
	}

	descriptive.Append("cdwalite:displayMaterialsTech", "not applicable")

	dates := dc("Date")
	descriptive.Append("cdwalite:displayCreationDate", orUnknown(dates)[0])
	datesWrap := descriptive.Append("cdwalite:indexingDatesWrap", "")
	for _, d := range dates {
		datesWrap.AppendWithChildren("cdwalite:indexingDatesSet",
			xmldoc.Child{Name: "cdwalite:earliestDate", Text: d},
			xmldoc.Child{Name: "cdwalite:latestDate", Text: d},
		)
	}

	descriptive.Append("cdwalite:locationWrap", "").
		Append("cdwalite:locationSet", "").
		Append("cdwalite:locationName", "location unknown")

	classes := descriptive.Append("cdwalite:classWrap", "")
	for _, s := range dc("Subject") {
		classes.Append("cdwalite:classification", s)
	}

	if descriptions := dc("Description"); len(descriptions) > 0 {
		notes := descriptive.Append("cdwalite:descriptiveNoteWrap", "")
		for _, d := range descriptions {
			notes.Append("cdwalite:descriptiveNoteSet", "").Append("cdwalite:descriptiveNote", d)
		}
	}

	admin := cdwalite.Append("cdwalite:administrativeMetadata", "")
	for _, r := range dc("Rights") {
		admin.Append("cdwalite:rightsWork", r)
	}

	record := admin.Append("cdwalite:recordWrap", "")
	record.Append("cdwalite:recordID", strconv.FormatInt(rec.ID, 10))
	record.Append("cdwalite:recordType", "item")
	record.Append("cdwalite:recordInfoWrap", "").
		AppendWithAttrs("cdwalite:recordInfoID", f.opts.identifier(rec.ID), xmldoc.Attr{Key: "cdwalite:type", Value: "oai"})

	if f.opts.ExposeFiles && len(rec.Files) > 0 {
		resources := admin.Append("cdwalite:resourceWrap", "")
		for _, file := range rec.Files {
			resources.Append("cdwalite:resourceSet", "").Append("cdwalite:linkResource", file.URL)
		}
	}
}
