package metadata

import (
	"strconv"
	"strings"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

const (
	MetsNamespace  = "http://www.loc.gov/METS/"
	MetsSchema     = "http://www.loc.gov/standards/mets/mets.xsd"
	XlinkNamespace = "http://www.w3.org/1999/xlink"
)

// Mets wraps the Dublin Core of a record, and of its files when files are
// exposed, in a METS document with a file section and a structural map.
type Mets struct {
	opts Options
}

func NewMets(opts Options) *Mets {
	return &Mets{opts: opts}
}

func (f *Mets) Prefix() string    { return "mets" }
func (f *Mets) Namespace() string { return MetsNamespace }
func (f *Mets) Schema() string    { return MetsSchema }

func appendDmdSec(mets xmldoc.Node, id string, elements repo.Elements) {
	sec := mets.AppendWithAttrs("dmdSec", "", xmldoc.Attr{Key: "ID", Value: id})
	wrap := sec.AppendWithAttrs("mdWrap", "", xmldoc.Attr{Key: "MDTYPE", Value: "DC"})
	data := wrap.Append("xmlData", "")
	data.DeclareNamespace("dc", DcNamespace)
	for _, e := range DcElements {
		for _, text := range elements.Texts(repo.DublinCore, e) {
			data.Append("dc:"+strings.ToLower(e), text)
		}
	}
}

func (f *Mets) AppendMetadata(rec *repo.Record, parent xmldoc.Node) {
	mets := parent.Append("mets", "")
	mets.DeclareNamespace("", MetsNamespace)
	mets.DeclareSchemaLocation(MetsNamespace, MetsSchema)
	mets.DeclareNamespace("xlink", XlinkNamespace)

	itemDmdID := "dmd-" + strconv.FormatInt(rec.ID, 10)
	appendDmdSec(mets, itemDmdID, rec.Elements)

	var files []repo.File
	if f.opts.ExposeFiles {
		files = rec.Files
	}

	// all dmdSec precede the fileSec
	for _, file := range files {
		appendDmdSec(mets, "dmd-file-"+strconv.FormatInt(file.ID, 10), file.Elements)
	}

	var fileIDs []string
	if len(files) > 0 {
		group := mets.Append("fileSec", "").AppendWithAttrs("fileGrp", "", xmldoc.Attr{Key: "USE", Value: "ORIGINAL"})
		for _, file := range files {
			id := strconv.FormatInt(file.ID, 10)
			el := group.AppendWithAttrs("file", "",
				xmldoc.Attr{Key: "ID", Value: "file-" + id},
				xmldoc.Attr{Key: "MIMETYPE", Value: file.MimeType},
				xmldoc.Attr{Key: "CHECKSUM", Value: file.Checksum},
				xmldoc.Attr{Key: "CHECKSUMTYPE", Value: "MD5"},
				xmldoc.Attr{Key: "DMDID", Value: "dmd-file-" + id},
			)
			el.AppendWithAttrs("FLocat", "",
				xmldoc.Attr{Key: "LOCTYPE", Value: "URL"},
				xmldoc.Attr{Key: "xlink:type", Value: "simple"},
				xmldoc.Attr{Key: "xlink:title", Value: file.OriginalFilename},
				xmldoc.Attr{Key: "xlink:href", Value: file.URL},
			)
			fileIDs = append(fileIDs, "file-"+id)
		}
	}

	div := mets.Append("structMap", "").AppendWithAttrs("div", "", xmldoc.Attr{Key: "DMDID", Value: itemDmdID})
	for _, id := range fileIDs {
		div.AppendWithAttrs("fptr", "", xmldoc.Attr{Key: "FILEID", Value: id})
	}
}
