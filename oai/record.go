package oai

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aep/oairepo/repo"
	"github.com/aep/oairepo/xmldoc"
)

func (r *Responder) appendHeader(parent xmldoc.Node, rec *repo.Record) {
	header := parent.Append("header", "")
	header.Append("identifier", RecordToOAIID(rec.ID, r.cfg.NamespaceID))
	header.Append("datestamp", ToUTC(rec.Modified))
	if rec.SetID != nil {
		header.Append("setSpec", strconv.FormatInt(*rec.SetID, 10))
	}
}

func (r *Responder) appendRecord(parent xmldoc.Node, rec *repo.Record, prefix string) error {
	el := parent.Append("record", "")
	r.appendHeader(el, rec)
	if err := r.formats.Render(prefix, rec, el.Append("metadata", "")); err != nil {
		return fmt.Errorf("render record %d: %w", rec.ID, err)
	}
	return nil
}

// findRecord resolves an OAI identifier. A nil record means the
// idDoesNotExist error was added to resp.
func (r *Responder) findRecord(ctx context.Context, resp *Response, identifier string) (*repo.Record, error) {
	id, err := OAIIDToRecord(identifier, r.cfg.NamespaceID)
	if err != nil {
		resp.addError(IDDoesNotExist, fmt.Sprintf("The value of the identifier argument is unknown or illegal in this repository: %s.", identifier))
		return nil, nil
	}

	rec, err := r.store.FindRecordByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		resp.addError(IDDoesNotExist, fmt.Sprintf("The value of the identifier argument is unknown or illegal in this repository: %s.", identifier))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record %d: %w", id, err)
	}
	return rec, nil
}

func (r *Responder) getRecord(ctx context.Context, resp *Response, args map[string]string) error {
	rec, err := r.findRecord(ctx, resp, args["identifier"])
	if err != nil || rec == nil {
		return err
	}
	return r.appendRecord(resp.root.Append("GetRecord", ""), rec, args["metadataPrefix"])
}

func (r *Responder) listMetadataFormats(ctx context.Context, resp *Response, args map[string]string) error {
	if identifier, ok := args["identifier"]; ok {
		rec, err := r.findRecord(ctx, resp, identifier)
		if err != nil || rec == nil {
			return err
		}
	}

	if r.formats.Len() == 0 {
		resp.addError(NoMetadataFormats, "There are no metadata formats available.")
		return nil
	}

	r.formats.DeclareAll(resp.root.Append("ListMetadataFormats", ""))
	return nil
}
