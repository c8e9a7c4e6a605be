// Package oai answers OAI-PMH requests: it validates arguments, dispatches
// the six verbs and pages list responses with resumption tokens.
package oai

import (
	"context"
	"slices"
	"time"

	"github.com/aep/oairepo/metadata"
	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/token"
	"github.com/aep/oairepo/xmldoc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	Namespace = "http://www.openarchives.org/OAI/2.0/"
	Schema    = "http://www.openarchives.org/OAI/2.0/OAI-PMH.xsd"

	IdentifierNamespace = "http://www.openarchives.org/OAI/2.0/oai-identifier"
	IdentifierSchema    = "http://www.openarchives.org/OAI/2.0/oai-identifier.xsd"

	ProtocolVersion = "2.0"
)

var tracer = otel.Tracer("github.com/aep/oairepo/oai")

type Config struct {
	RepositoryName string
	AdminEmail     string
	NamespaceID    string
	PageLimit      int
	TokenTTL       time.Duration

	// ExposeEmptyCollections lists sets without public records.
	ExposeEmptyCollections bool
}

// TokenStore persists resumption tokens. Implemented by token.Store.
type TokenStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Create(ctx context.Context, p token.Params, ttl time.Duration) (*token.Token, error)
	Find(ctx context.Context, id uint64) (*token.Token, error)
}

type Responder struct {
	cfg     Config
	store   repo.Store
	tokens  TokenStore
	formats *metadata.Registry
	now     func() time.Time
}

type Option func(*Responder)

func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

func NewResponder(cfg Config, store repo.Store, tokens TokenStore, formats *metadata.Registry, opts ...Option) *Responder {
	r := &Responder{
		cfg:     cfg,
		store:   store,
		tokens:  tokens,
		formats: formats,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Request is one OAI-PMH request as seen by the HTTP layer.
type Request struct {
	// Args holds the first value of every argument.
	Args map[string]string

	// RawQuery is the undecoded argument string, used to find repeated
	// arguments.
	RawQuery string

	BaseURL string
}

type Response struct {
	doc     *xmldoc.Document
	root    xmldoc.Node
	request xmldoc.Node
	verb    Verb
	errors  []Error
}

func (r *Responder) newResponse(baseURL string) *Response {
	doc := xmldoc.NewDocument("OAI-PMH", Namespace)
	root := doc.Root()
	root.DeclareSchemaLocation(Namespace, Schema)
	root.Append("responseDate", ToUTC(r.now()))
	return &Response{
		doc:     doc,
		root:    root,
		request: root.Append("request", baseURL),
	}
}

func (resp *Response) addError(code Code, message string) {
	resp.errors = append(resp.errors, Error{Code: code, Message: message})
	resp.root.AppendWithAttrs("error", message, xmldoc.Attr{Key: "code", Value: string(code)})
}

// echoRequest copies the arguments onto the request element.
func (resp *Response) echoRequest(args map[string]string) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		resp.request.SetAttr(k, args[k])
	}
}

func (resp *Response) Errored() bool {
	return len(resp.errors) > 0
}

func (resp *Response) Errors() []Error {
	return resp.errors
}

// Verb is empty if the request had no valid verb.
func (resp *Response) Verb() Verb {
	return resp.verb
}

func (resp *Response) String() (string, error) {
	return resp.doc.String()
}

func (resp *Response) Bytes() ([]byte, error) {
	return resp.doc.Bytes()
}

// Respond builds the response document for req. Protocol errors are part of
// the document; the returned error is reserved for failing collaborators.
func (r *Responder) Respond(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "oai.Respond")
	defer span.End()

	resp := r.newResponse(req.BaseURL)

	verb, known := ParseVerb(req.Args["verb"])
	if !known {
		if _, ok := req.Args["verb"]; ok {
			resp.addError(BadVerb, "Illegal OAI verb.")
		} else {
			resp.addError(BadVerb, "Missing verb argument.")
		}
		return resp, nil
	}
	resp.verb = verb
	span.SetAttributes(attribute.String("oai.verb", string(verb)))

	for _, e := range r.validate(verb, req.Args, req.RawQuery) {
		resp.addError(e.Code, e.Message)
	}
	if resp.Errored() {
		return resp, nil
	}
	resp.echoRequest(req.Args)

	var err error
	switch verb {
	case Identify:
		r.identify(resp, req.BaseURL)
	case GetRecord:
		err = r.getRecord(ctx, resp, req.Args)
	case ListMetadataFormats:
		err = r.listMetadataFormats(ctx, resp, req.Args)
	case ListSets:
		err = r.listSets(ctx, resp, req.Args)
	case ListIdentifiers, ListRecords:
		err = r.listRecords(ctx, resp, verb, req.Args)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if resp.Errored() {
		span.SetAttributes(attribute.String("oai.error", string(resp.errors[0].Code)))
	}
	return resp, nil
}
