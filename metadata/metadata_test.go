package metadata

import (
	"strconv"
	"testing"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Identifier:  func(id int64) string { return "oai:example.org:" + strconv.FormatInt(id, 10) },
		ExposeFiles: true,
	}
}

func testRecord() *repo.Record {
	e := make(repo.Elements)
	e.Add(repo.DublinCore, "Title", "Map of Springfield")
	e.Add(repo.DublinCore, "Creator", "Alice")
	e.Add(repo.DublinCore, "Creator", "Bob")
	e.Add(repo.DublinCore, "Type", "Still Image")
	e.Add(repo.DublinCore, "Identifier", "MS-42")
	e.Add(repo.DublinCore, "Identifier", "https://doi.org/10.1/42")
	e.Add(repo.DublinCore, "Source", "https://example.org/orig")
	e.Add(repo.DublinCore, "Relation", "Atlas volume 2")
	e.Add(repo.DublinCore, "Date", "1901")
	e.Add(repo.DublinCore, "Extent", "1 sheet")

	fe := make(repo.Elements)
	fe.Add(repo.DublinCore, "Title", "Front")

	return &repo.Record{
		ID:       7,
		ItemType: "Map",
		Public:   true,
		Elements: e,
		URL:      "http://example.org/items/show/7",
		Files: []repo.File{{
			ID:               3,
			Filename:         "abc.jpg",
			OriginalFilename: "front.jpg",
			MimeType:         "image/jpeg",
			Checksum:         "d41d8cd98f00b204e9800998ecf8427e",
			Elements:         fe,
			URL:              "http://example.org/files/original/abc.jpg",
		}},
	}
}

func render(t *testing.T, f Format, rec *repo.Record) *etree.Element {
	doc := xmldoc.NewDocument("metadata", "")
	f.AppendMetadata(rec, doc.Root())
	s, err := doc.String()
	require.NoError(t, err)

	parsed := etree.NewDocument()
	require.NoError(t, parsed.ReadFromString(s))
	children := parsed.Root().ChildElements()
	require.Len(t, children, 1)
	return children[0]
}

func texts(el *etree.Element, path string) []string {
	var out []string
	for _, e := range el.FindElements(path) {
		out = append(out, e.Text())
	}
	return out
}

func tags(el *etree.Element) []string {
	var out []string
	for _, c := range el.ChildElements() {
		out = append(out, c.FullTag())
	}
	return out
}

func TestRegistryRejectsDuplicatePrefix(t *testing.T) {
	_, err := NewRegistry(NewOaiDc(Options{}), NewOaiDc(Options{}))
	assert.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	r := Default(testOptions())

	var prefixes []string
	for _, f := range r.Formats() {
		prefixes = append(prefixes, f.Prefix())
	}
	assert.Equal(t, []string{"oai_dc", "oai_qdc", "mods", "mets", "cdwalite", "rdf"}, prefixes)
	assert.Equal(t, 6, r.Len())

	f, ok := r.Lookup("mods")
	require.True(t, ok)
	assert.Equal(t, ModsNamespace, f.Namespace())

	_, ok = r.Lookup("marc21")
	assert.False(t, ok)

	doc := xmldoc.NewDocument("metadata", "")
	err := r.Render("marc21", testRecord(), doc.Root())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDeclareAll(t *testing.T) {
	r := Default(testOptions())
	doc := xmldoc.NewDocument("ListMetadataFormats", "")
	r.DeclareAll(doc.Root())

	s, err := doc.String()
	require.NoError(t, err)
	parsed := etree.NewDocument()
	require.NoError(t, parsed.ReadFromString(s))

	formats := parsed.Root().SelectElements("metadataFormat")
	require.Len(t, formats, 6)
	assert.Equal(t, []string{"metadataPrefix", "schema", "metadataNamespace"}, tags(formats[0]))
	assert.Equal(t, "oai_dc", formats[0].SelectElement("metadataPrefix").Text())
	assert.Equal(t, OaiDcSchema, formats[0].SelectElement("schema").Text())
	assert.Equal(t, OaiDcNamespace, formats[0].SelectElement("metadataNamespace").Text())
}

func TestOaiDc(t *testing.T) {
	dc := render(t, NewOaiDc(testOptions()), testRecord())

	assert.Equal(t, "oai_dc:dc", dc.FullTag())
	assert.Equal(t, OaiDcNamespace, dc.SelectAttrValue("xmlns:oai_dc", ""))
	assert.Equal(t, DcNamespace, dc.SelectAttrValue("xmlns:dc", ""))
	assert.Equal(t, OaiDcNamespace+" "+OaiDcSchema, dc.SelectAttrValue("xsi:schemaLocation", ""))

	assert.Equal(t, []string{
		"dc:title", "dc:creator", "dc:creator", "dc:date", "dc:type",
		"dc:identifier", "dc:identifier", "dc:identifier", "dc:identifier",
		"dc:source", "dc:relation",
	}, tags(dc))

	assert.Equal(t, []string{
		"MS-42",
		"https://doi.org/10.1/42",
		"http://example.org/items/show/7",
		"http://example.org/files/original/abc.jpg",
	}, texts(dc, "dc:identifier"))

	// refinements are not unqualified DC
	assert.Empty(t, texts(dc, "dcterms:extent"))
}

func TestOaiDcWithoutFiles(t *testing.T) {
	opts := testOptions()
	opts.ExposeFiles = false
	dc := render(t, NewOaiDc(opts), testRecord())

	assert.Equal(t, []string{"MS-42", "https://doi.org/10.1/42", "http://example.org/items/show/7"}, texts(dc, "dc:identifier"))
}

func TestOaiDcItemType(t *testing.T) {
	opts := testOptions()
	opts.ExposeItemType = true
	dc := render(t, NewOaiDc(opts), testRecord())

	assert.Equal(t, []string{"Map", "Still Image"}, texts(dc, "dc:type"))
}

func TestOaiDcEmptyRecordStillHasBrowseURL(t *testing.T) {
	dc := render(t, NewOaiDc(Options{}), &repo.Record{ID: 1, URL: "http://example.org/items/show/1"})
	assert.Equal(t, []string{"dc:identifier"}, tags(dc))
}

func TestOaiQdc(t *testing.T) {
	qdc := render(t, NewOaiQdc(testOptions()), testRecord())

	assert.Equal(t, "oai_qdc:qualifieddc", qdc.FullTag())
	assert.Equal(t, DctermsNamespace, qdc.SelectAttrValue("xmlns:dcterms", ""))
	assert.Equal(t, []string{"1 sheet"}, texts(qdc, "dcterms:extent"))

	all := tags(qdc)
	assert.Equal(t, "dcterms:extent", all[len(all)-1])
}

func TestMods(t *testing.T) {
	mods := render(t, NewMods(testOptions()), testRecord())

	assert.Equal(t, "mods", mods.FullTag())
	assert.Equal(t, ModsNamespace, mods.SelectAttrValue("xmlns", ""))
	assert.Equal(t, []string{"Map of Springfield"}, texts(mods, "titleInfo/title"))
	assert.Equal(t, []string{"Alice", "Bob"}, texts(mods, "name/namePart"))
	assert.Equal(t, []string{"creator", "creator"}, texts(mods, "name/role/roleTerm"))

	ids := mods.SelectElements("identifier")
	require.Len(t, ids, 2)
	assert.Equal(t, "local", ids[0].SelectAttrValue("type", ""))
	assert.Equal(t, "uri", ids[1].SelectAttrValue("type", ""))

	related := mods.SelectElements("relatedItem")
	require.Len(t, related, 2)
	assert.Equal(t, "original", related[0].SelectAttrValue("type", ""))
	assert.Equal(t, []string{"https://example.org/orig"}, texts(related[0], "location/url"))
	assert.Equal(t, []string{"Atlas volume 2"}, texts(related[1], "titleInfo/title"))

	assert.Equal(t, []string{"http://example.org/items/show/7"}, texts(mods, "location/url"))
	assert.Equal(t, []string{"1901"}, texts(mods, "originInfo/dateOther"))
	assert.Equal(t, []string{"7"}, texts(mods, "recordInfo/recordIdentifier"))
}

func TestModsOmitsEmptyOriginInfo(t *testing.T) {
	mods := render(t, NewMods(Options{}), &repo.Record{ID: 1})
	assert.Nil(t, mods.SelectElement("originInfo"))
}

func TestMets(t *testing.T) {
	mets := render(t, NewMets(testOptions()), testRecord())

	assert.Equal(t, []string{"dmdSec", "dmdSec", "fileSec", "structMap"}, tags(mets))
	secs := mets.SelectElements("dmdSec")
	assert.Equal(t, "dmd-7", secs[0].SelectAttrValue("ID", ""))
	assert.Equal(t, "dmd-file-3", secs[1].SelectAttrValue("ID", ""))
	assert.Equal(t, []string{"Front"}, texts(secs[1], "mdWrap/xmlData/dc:title"))

	file := mets.FindElement("fileSec/fileGrp/file")
	require.NotNil(t, file)
	assert.Equal(t, "file-3", file.SelectAttrValue("ID", ""))
	assert.Equal(t, "image/jpeg", file.SelectAttrValue("MIMETYPE", ""))
	flocat := file.SelectElement("FLocat")
	require.NotNil(t, flocat)
	assert.Equal(t, "http://example.org/files/original/abc.jpg", flocat.SelectAttrValue("xlink:href", ""))

	fptr := mets.FindElement("structMap/div/fptr")
	require.NotNil(t, fptr)
	assert.Equal(t, "file-3", fptr.SelectAttrValue("FILEID", ""))
}

func TestMetsWithoutFiles(t *testing.T) {
	opts := testOptions()
	opts.ExposeFiles = false
	mets := render(t, NewMets(opts), testRecord())

	assert.Equal(t, []string{"dmdSec", "structMap"}, tags(mets))
	assert.Nil(t, mets.FindElement("structMap/div/fptr"))
}

func TestCdwaLite(t *testing.T) {
	wrap := render(t, NewCdwaLite(testOptions()), testRecord())

	d := wrap.FindElement("cdwalite:cdwalite/cdwalite:descriptiveMetadata")
	require.NotNil(t, d)
	assert.Equal(t, []string{"Still Image"}, texts(d, "cdwalite:objectWorkTypeWrap/cdwalite:objectWorkType"))
	assert.Equal(t, []string{"Alice, Bob"}, texts(d, "cdwalite:displayCreator"))
	assert.Equal(t, []string{"1901"}, texts(d, "cdwalite:displayCreationDate"))

	a := wrap.FindElement("cdwalite:cdwalite/cdwalite:administrativeMetadata")
	require.NotNil(t, a)
	assert.Equal(t, []string{"oai:example.org:7"}, texts(a, "cdwalite:recordWrap/cdwalite:recordInfoWrap/cdwalite:recordInfoID"))
	assert.Equal(t, []string{"http://example.org/files/original/abc.jpg"}, texts(a, "cdwalite:resourceWrap/cdwalite:resourceSet/cdwalite:linkResource"))
}

func TestCdwaLiteFillsUnknown(t *testing.T) {
	wrap := render(t, NewCdwaLite(Options{}), &repo.Record{ID: 1})

	d := wrap.FindElement("cdwalite:cdwalite/cdwalite:descriptiveMetadata")
	require.NotNil(t, d)
	assert.Equal(t, []string{"Unknown"}, texts(d, "cdwalite:objectWorkTypeWrap/cdwalite:objectWorkType"))
	assert.Equal(t, []string{"Unknown"}, texts(d, "cdwalite:titleWrap/cdwalite:titleSet/cdwalite:title"))
	assert.Equal(t, []string{"Unknown"}, texts(d, "cdwalite:displayCreator"))
	assert.Equal(t, []string{"not applicable"}, texts(d, "cdwalite:displayMaterialsTech"))
	assert.Nil(t, d.SelectElement("cdwalite:descriptiveNoteWrap"))
}

func TestRdf(t *testing.T) {
	rdf := render(t, NewRdf(testOptions()), testRecord())

	assert.Equal(t, "rdf:RDF", rdf.FullTag())
	desc := rdf.SelectElement("rdf:Description")
	require.NotNil(t, desc)
	assert.Equal(t, "oai:example.org:7", desc.SelectAttrValue("rdf:about", ""))
	assert.Equal(t, []string{"MS-42", "https://doi.org/10.1/42"}, texts(desc, "dc:identifier"))
	assert.Equal(t, []string{"1 sheet"}, texts(desc, "dcterms:extent"))
}

func TestAppendSetDescription(t *testing.T) {
	doc := xmldoc.NewDocument("setDescription", "")
	AppendSetDescription(doc.Root(), []string{"Old maps"})
	s, err := doc.String()
	require.NoError(t, err)
	assert.Contains(t, s, "<dc:description>Old maps</dc:description>")
}
