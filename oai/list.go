package oai

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aep/oairepo/metadata"
	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/token"
	"github.com/aep/oairepo/xmldoc"
)

// listQuery is the state a list request carries from page to page.
type listQuery struct {
	prefix string
	cursor uint64
	set    *int64
	from   string
	until  string
}

// resume looks up a resumption token issued for verb. A nil token means the
// badResumptionToken error was added to resp.
func (r *Responder) resume(ctx context.Context, resp *Response, verb Verb, arg string) (*token.Token, error) {
	now := r.now()
	if _, err := r.tokens.PurgeExpired(ctx, now); err != nil {
		return nil, fmt.Errorf("purge expired tokens: %w", err)
	}

	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		resp.addError(BadResumptionToken, "Invalid or expired resumptionToken.")
		return nil, nil
	}

	tok, err := r.tokens.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find token %d: %w", id, err)
	}

	// the purge above may have raced with the expiration
	if tok == nil || tok.Verb != string(verb) || tok.Expired(now) {
		resp.addError(BadResumptionToken, "Invalid or expired resumptionToken.")
		return nil, nil
	}
	return tok, nil
}

func (r *Responder) listRecords(ctx context.Context, resp *Response, verb Verb, args map[string]string) error {
	if arg, ok := args[resumptionToken]; ok {
		tok, err := r.resume(ctx, resp, verb, arg)
		if err != nil || tok == nil {
			return err
		}
		if _, ok := r.formats.Lookup(tok.MetadataPrefix); !ok {
			resp.addError(CannotDisseminateFormat, fmt.Sprintf("The metadata format %s is not supported by this repository.", tok.MetadataPrefix))
			return nil
		}
		return r.listResponse(ctx, resp, verb, listQuery{
			prefix: tok.MetadataPrefix,
			cursor: tok.Cursor,
			set:    tok.Set,
			from:   tok.From,
			until:  tok.Until,
		})
	}

	q := listQuery{prefix: args["metadataPrefix"]}

	// dates were validated already
	if v, ok := args["from"]; ok {
		q.from, _ = UTCToStorage(v)
	}
	if v, ok := args["until"]; ok {
		q.until, _ = UTCToStorage(v)
	}

	if v, ok := args["set"]; ok {
		set, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			resp.addError(NoRecordsMatch, "No records match the given criteria.")
			return nil
		}
		q.set = &set
	}

	return r.listResponse(ctx, resp, verb, q)
}

func (r *Responder) listResponse(ctx context.Context, resp *Response, verb Verb, q listQuery) error {
	rows, total, err := r.store.FindPublicRecords(ctx, repo.Query{
		Set:    q.set,
		From:   q.from,
		Until:  q.until,
		Limit:  r.cfg.PageLimit,
		Offset: int(q.cursor),
	})
	if err != nil {
		return fmt.Errorf("find records: %w", err)
	}

	if len(rows) == 0 {
		resp.addError(NoRecordsMatch, "No records match the given criteria.")
		return nil
	}

	list := resp.root.Append(string(verb), "")
	for i := range rows {
		if verb == ListIdentifiers {
			r.appendHeader(list, &rows[i])
			continue
		}
		if err := r.appendRecord(list, &rows[i], q.prefix); err != nil {
			return err
		}
	}

	return r.appendResumptionToken(ctx, list, verb, q, total)
}

// appendResumptionToken issues a token for the next page if there is one.
// The last page of a paged list gets an empty resumptionToken.
func (r *Responder) appendResumptionToken(ctx context.Context, list xmldoc.Node, verb Verb, q listQuery, total int) error {
	next := q.cursor + uint64(r.cfg.PageLimit)

	if uint64(total) > next {
		tok, err := r.tokens.Create(ctx, token.Params{
			Verb:           string(verb),
			MetadataPrefix: q.prefix,
			Cursor:         next,
			From:           q.from,
			Until:          q.until,
			Set:            q.set,
		}, r.cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("create resumption token: %w", err)
		}

		list.AppendWithAttrs("resumptionToken", strconv.FormatUint(tok.ID, 10),
			xmldoc.Attr{Key: "expirationDate", Value: ToUTC(tok.Expiration)},
			xmldoc.Attr{Key: "completeListSize", Value: strconv.Itoa(total)},
			xmldoc.Attr{Key: "cursor", Value: strconv.FormatUint(q.cursor, 10)},
		)
		return nil
	}

	if q.cursor != 0 {
		list.Append("resumptionToken", "")
	}
	return nil
}

func (r *Responder) listSets(ctx context.Context, resp *Response, args map[string]string) error {
	var cursor uint64
	if arg, ok := args[resumptionToken]; ok {
		tok, err := r.resume(ctx, resp, ListSets, arg)
		if err != nil || tok == nil {
			return err
		}
		cursor = tok.Cursor
	}

	sets, total, err := r.store.ListSets(ctx, repo.SetQuery{
		IncludeEmpty: r.cfg.ExposeEmptyCollections,
		Limit:        r.cfg.PageLimit,
		Offset:       int(cursor),
	})
	if err != nil {
		return fmt.Errorf("list sets: %w", err)
	}

	if total == 0 {
		resp.addError(NoSetHierarchy, "This repository does not support sets.")
		return nil
	}
	if len(sets) == 0 {
		resp.addError(BadResumptionToken, "Invalid or expired resumptionToken.")
		return nil
	}

	list := resp.root.Append("ListSets", "")
	for _, s := range sets {
		el := list.AppendWithChildren("set",
			xmldoc.Child{Name: "setSpec", Text: strconv.FormatInt(s.ID, 10)},
			xmldoc.Child{Name: "setName", Text: s.Name},
		)
		if len(s.Descriptions) > 0 {
			metadata.AppendSetDescription(el.Append("setDescription", ""), s.Descriptions)
		}
	}

	return r.appendResumptionToken(ctx, list, ListSets, listQuery{cursor: cursor}, total)
}
