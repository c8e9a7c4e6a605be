// Package repo is the record store the OAI-PMH provider publishes from:
// records (items) with Dublin Core element texts, their collections and
// attached files.
package repo

import (
	"context"
	"errors"
	"time"
)

// TimeFormat is the store's native datetime text format, always UTC.
const TimeFormat = "2006-01-02 15:04:05"

// DublinCore is the element set name holding the unqualified and qualified
// Dublin Core element texts.
const DublinCore = "Dublin Core"

var ErrNotFound = errors.New("record not found")

// Elements maps element set name to element name to texts, in order.
type Elements map[string]map[string][]string

func (e Elements) Texts(set string, element string) []string {
	if e == nil {
		return nil
	}
	return e[set][element]
}

func (e Elements) Add(set string, element string, text string) {
	if e[set] == nil {
		e[set] = make(map[string][]string)
	}
	e[set][element] = append(e[set][element], text)
}

type Record struct {
	ID       int64     `json:"id"`
	SetID    *int64    `json:"set,omitempty"`
	ItemType string    `json:"itemType,omitempty"`
	Public   bool      `json:"public"`
	Added    time.Time `json:"added"`
	Modified time.Time `json:"modified"`
	Elements Elements  `json:"elements,omitempty"`
	Files    []File    `json:"files,omitempty"`

	// URL is the record's public browse page. Filled in by the store.
	URL string `json:"-"`
}

// ElementTexts returns the texts of one element, e.g.
// ElementTexts(DublinCore, "Title").
func (r *Record) ElementTexts(set string, element string) []string {
	return r.Elements.Texts(set, element)
}

type File struct {
	ID               int64    `json:"id"`
	Filename         string   `json:"filename"`
	OriginalFilename string   `json:"originalFilename,omitempty"`
	MimeType         string   `json:"mimeType,omitempty"`
	Checksum         string   `json:"checksum,omitempty"`
	Elements         Elements `json:"elements,omitempty"`

	// URL of the original file. Filled in by the store.
	URL string `json:"-"`
}

func (f *File) ElementTexts(set string, element string) []string {
	return f.Elements.Texts(set, element)
}

// Set is a collection. Title and description texts come from its Dublin Core
// element texts.
type Set struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions,omitempty"`
	Public       bool     `json:"public"`
}

// Query selects public records. From and Until are inclusive bounds in
// TimeFormat; a record matches a bound if either its added or its modified
// time satisfies it.
type Query struct {
	Set    *int64
	From   string
	Until  string
	Limit  int
	Offset int
}

type SetQuery struct {
	// IncludeEmpty also lists collections without public records.
	IncludeEmpty bool
	Limit        int
	Offset       int
}

type Store interface {
	// FindPublicRecords returns one page of matching records, ordered by id,
	// and the number of matching records over all pages.
	FindPublicRecords(ctx context.Context, q Query) ([]Record, int, error)

	// FindRecordByID returns ErrNotFound unless a public record with id
	// exists.
	FindRecordByID(ctx context.Context, id int64) (*Record, error)

	// ListSets returns one page of public sets ordered by id and the total
	// number of sets.
	ListSets(ctx context.Context, q SetQuery) ([]Set, int, error)

	Ping(ctx context.Context) error
}
