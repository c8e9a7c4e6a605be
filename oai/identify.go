package oai

import "github.com/aep/oairepo/xmldoc"

func (r *Responder) identify(resp *Response, baseURL string) {
	identify := resp.root.AppendWithChildren("Identify",
		xmldoc.Child{Name: "repositoryName", Text: r.cfg.RepositoryName},
		xmldoc.Child{Name: "baseURL", Text: baseURL},
		xmldoc.Child{Name: "protocolVersion", Text: ProtocolVersion},
		xmldoc.Child{Name: "adminEmail", Text: r.cfg.AdminEmail},
		// no earlier floor is tracked
		xmldoc.Child{Name: "earliestDatestamp", Text: UnixToUTC(0)},
		xmldoc.Child{Name: "deletedRecord", Text: "no"},
		xmldoc.Child{Name: "granularity", Text: GranularityString},
	)

	id := identify.Append("description", "").Append("oai-identifier", "")
	id.DeclareNamespace("", IdentifierNamespace)
	id.DeclareSchemaLocation(IdentifierNamespace, IdentifierSchema)
	id.Append("scheme", "oai")
	id.Append("repositoryIdentifier", r.cfg.NamespaceID)
	id.Append("delimiter", ":")
	id.Append("sampleIdentifier", RecordToOAIID(1, r.cfg.NamespaceID))
}
