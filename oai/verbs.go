package oai

import "slices"

type Verb string

const (
	Identify            Verb = "Identify"
	GetRecord           Verb = "GetRecord"
	ListIdentifiers     Verb = "ListIdentifiers"
	ListRecords         Verb = "ListRecords"
	ListSets            Verb = "ListSets"
	ListMetadataFormats Verb = "ListMetadataFormats"
)

const resumptionToken = "resumptionToken"

type arguments struct {
	required  []string
	optional  []string
	resumable bool
}

func (a arguments) allows(name string) bool {
	return slices.Contains(a.required, name) || slices.Contains(a.optional, name)
}

var verbArguments = map[Verb]arguments{
	Identify: {},
	GetRecord: {
		required: []string{"identifier", "metadataPrefix"},
	},
	ListIdentifiers: {
		required:  []string{"metadataPrefix"},
		optional:  []string{"from", "until", "set"},
		resumable: true,
	},
	ListRecords: {
		required:  []string{"metadataPrefix"},
		optional:  []string{"from", "until", "set"},
		resumable: true,
	},
	ListSets: {
		resumable: true,
	},
	ListMetadataFormats: {
		optional: []string{"identifier"},
	},
}

func ParseVerb(s string) (Verb, bool) {
	v := Verb(s)
	_, ok := verbArguments[v]
	return v, ok
}
