package metadata

import (
	"strconv"
	"strings"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	ModsNamespace = "http://www.loc.gov/mods/v3"
	ModsSchema    = "http://www.loc.gov/standards/mods/v3/mods-3-3.xsd"
)

// Mods is a MODS 3.3 crosswalk from Dublin Core.
type Mods struct {
	opts Options
}

func NewMods(opts Options) *Mods {
	return &Mods{opts: opts}
}

func (f *Mods) Prefix() string    { return "mods" }
func (f *Mods) Namespace() string { return ModsNamespace }
func (f *Mods) Schema() string    { return ModsSchema }

func isURL(text string) bool {
	return strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://")
}

func (f *Mods) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	dc := func(element string) []string {
		return rec.ElementTexts(repo.DublinCore, element)
	}

	mods := parent.Append("mods", "")
	mods.DeclareNamespace("", ModsNamespace)
	mods.DeclareSchemaLocation(ModsNamespace, ModsSchema)

	for _, title := range dc("Title") {
		mods.Append("titleInfo", "").Append("title", title)
	}

	appendName := func(name string, role string) {
		n := mods.Append("name", "")
		n.Append("namePart", name)
		n.Append("role", "").AppendWithAttrs("roleTerm", role, xmldoc.Attr{Key: "type", Value: "text"})
	}
	for _, creator := range dc("Creator") {
		appendName(creator, "creator")
	}
	for _, contributor := range dc("Contributor") {
		appendName(contributor, "contributor")
	}

	for _, subject := range dc("Subject") {
		mods.Append("subject", "").Append("topic", subject)
	}
	for _, description := range dc("Description") {
		mods.Append("note", description)
	}
	for _, format := range dc("Format") {
		mods.Append("physicalDescription", "").Append("form", format)
	}
	for _, language := range dc("Language") {
		mods.Append("language", "").AppendWithAttrs("languageTerm", language, xmldoc.Attr{Key: "type", Value: "text"})
	}
	for _, rights := range dc("Rights") {
		mods.Append("accessCondition", rights)
	}
	for _, typ := range dc("Type") {
		mods.Append("genre", typ)
	}

	for _, id := range dc("Identifier") {
		kind := "local"
		if isURL(id) {
			kind = "uri"
		}
		mods.AppendWithAttrs("identifier", id, xmldoc.Attr{Key: "type", Value: kind})
	}

	for _, source := range dc("Source") {
		appendRelatedItem(mods, source).SetAttr("type", "original")
	}
	for _, relation := range dc("Relation") {
		appendRelatedItem(mods, relation)
	}

	mods.Append("location", "").AppendWithAttrs("url", rec.URL, xmldoc.Attr{Key: "usage", Value: "primary display"})

	// an empty originInfo is invalid
	publishers, dates := dc("Publisher"), dc("Date")
	if len(publishers)+len(dates) > 0 {
		origin := mods.Append("originInfo", "")
		for _, p := range publishers {
			origin.Append("publisher", p)
		}
		for _, d := range dates {
			origin.Append("dateOther", d)
		}
	}

	mods.Append("recordInfo", "").Append("recordIdentifier", strconv.FormatInt(rec.ID, 10))
}

func appendRelatedItem(mods xmldoc.Node, text string) xmldoc.Node {
	related := mods.Append("relatedItem", "")
	if isURL(text) {
		related.Append("location", "").Append("url", text)
	} else {
		related.Append("titleInfo", "").Append("title", text)
	}
	return related
}
