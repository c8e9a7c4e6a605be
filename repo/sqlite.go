package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id     INTEGER PRIMARY KEY,
	public INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS items (
	id            INTEGER PRIMARY KEY,
	collection_id INTEGER,
	item_type     TEXT NOT NULL DEFAULT '',
	public        INTEGER NOT NULL DEFAULT 1,
	added         TEXT NOT NULL,
	modified      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS items_collection ON items(collection_id);
CREATE INDEX IF NOT EXISTS items_added ON items(added);
CREATE INDEX IF NOT EXISTS items_modified ON items(modified);
CREATE TABLE IF NOT EXISTS files (
	id                INTEGER PRIMARY KEY,
	item_id           INTEGER NOT NULL,
	filename          TEXT NOT NULL,
	original_filename TEXT NOT NULL DEFAULT '',
	mime_type         TEXT NOT NULL DEFAULT '',
	checksum          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS files_item ON files(item_id);
CREATE TABLE IF NOT EXISTS element_texts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	record_type TEXT NOT NULL,
	record_id   INTEGER NOT NULL,
	element_set TEXT NOT NULL,
	element     TEXT NOT NULL,
	text        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS element_texts_record ON element_texts(record_type, record_id);
`

const (
	recordTypeItem       = "item"
	recordTypeFile       = "file"
	recordTypeCollection = "collection"
)

// SQLStore keeps records in SQLite.
type SQLStore struct {
	db      *sql.DB
	siteURL string
}

// OpenSQLite opens (creating if needed) the database at path. siteURL is the
// public site root that record and file URLs are built from. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, siteURL string) (*SQLStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLStore{db: db, siteURL: strings.TrimRight(siteURL, "/")}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) recordURL(id int64) string {
	return s.siteURL + "/items/show/" + strconv.FormatInt(id, 10)
}

func (s *SQLStore) fileURL(filename string) string {
	return s.siteURL + "/files/original/" + filename
}

func parseTime(v string) (time.Time, error) {
	return time.ParseInLocation(TimeFormat, v, time.UTC)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

func recordFilter(q Query) (string, []any) {
	conds := []string{"public = 1"}
	var args []any
	if q.Set != nil {
		conds = append(conds, "collection_id = ?")
		args = append(args, *q.Set)
	}
	if q.From != "" {
		conds = append(conds, "(modified >= ? OR added >= ?)")
		args = append(args, q.From, q.From)
	}
	if q.Until != "" {
		conds = append(conds, "(modified <= ? OR added <= ?)")
		args = append(args, q.Until, q.Until)
	}
	return strings.Join(conds, " AND "), args
}

func limitOffset(limit int, offset int) (int, int) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

const recordColumns = "id, collection_id, item_type, public, added, modified"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var set sql.NullInt64
	var added, modified string
	if err := row.Scan(&rec.ID, &set, &rec.ItemType, &rec.Public, &added, &modified); err != nil {
		return rec, err
	}
	if set.Valid {
		id := set.Int64
		rec.SetID = &id
	}
	var err error
	if rec.Added, err = parseTime(added); err != nil {
		return rec, fmt.Errorf("record %d added: %w", rec.ID, err)
	}
	if rec.Modified, err = parseTime(modified); err != nil {
		return rec, fmt.Errorf("record %d modified: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *SQLStore) FindPublicRecords(ctx context.Context, q Query) ([]Record, int, error) {
	where, args := recordFilter(q)

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	limit, offset := limitOffset(q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM items WHERE "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	if err := s.hydrate(ctx, records); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *SQLStore) FindRecordByID(ctx context.Context, id int64) (*Record, error) {
	return s.findRecord(ctx, id, true)
}

// Record returns the record with id whether it is public or not.
func (s *SQLStore) Record(ctx context.Context, id int64) (*Record, error) {
	return s.findRecord(ctx, id, false)
}

func (s *SQLStore) findRecord(ctx context.Context, id int64, publicOnly bool) (*Record, error) {
	query := "SELECT " + recordColumns + " FROM items WHERE id = ?"
	if publicOnly {
		query += " AND public = 1"
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query record %d: %w", id, err)
	}

	records := []Record{rec}
	if err := s.hydrate(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// elementTexts loads the element texts of all ids of one record type.
func (s *SQLStore) elementTexts(ctx context.Context, recordType string, ids []int64) (map[int64]Elements, error) {
	out := make(map[int64]Elements, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := []any{recordType}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, element_set, element, text FROM element_texts WHERE record_type = ? AND record_id IN ("+placeholders(len(ids))+") ORDER BY id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query element texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var set, element, text string
		if err := rows.Scan(&id, &set, &element, &text); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(Elements)
		}
		out[id].Add(set, element, text)
	}
	return out, rows.Err()
}

func (s *SQLStore) hydrate(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]int64, len(records))
	index := make(map[int64]*Record, len(records))
	for i := range records {
		ids[i] = records[i].ID
		index[records[i].ID] = &records[i]
		records[i].URL = s.recordURL(records[i].ID)
		records[i].Elements = make(Elements)
	}

	texts, err := s.elementTexts(ctx, recordTypeItem, ids)
	if err != nil {
		return err
	}
	for id, e := range texts {
		index[id].Elements = e
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, item_id, filename, original_filename, mime_type, checksum FROM files WHERE item_id IN ("+placeholders(len(ids))+") ORDER BY id",
		args...)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var fileIDs []int64
	owners := make(map[int64]int64)
	for rows.Next() {
		var f File
		var itemID int64
		if err := rows.Scan(&f.ID, &itemID, &f.Filename, &f.OriginalFilename, &f.MimeType, &f.Checksum); err != nil {
			return err
		}
		f.URL = s.fileURL(f.Filename)
		index[itemID].Files = append(index[itemID].Files, f)
		fileIDs = append(fileIDs, f.ID)
		owners[f.ID] = itemID
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	fileTexts, err := s.elementTexts(ctx, recordTypeFile, fileIDs)
	if err != nil {
		return err
	}
	for fileID, e := range fileTexts {
		rec := index[owners[fileID]]
		for i := range rec.Files {
			if rec.Files[i].ID == fileID {
				rec.Files[i].Elements = e
			}
		}
	}
	return nil
}

func (s *SQLStore) ListSets(ctx context.Context, q SetQuery) ([]Set, int, error) {
	where := "c.public = 1"
	if !q.IncludeEmpty {
		where += " AND EXISTS (SELECT 1 FROM items i WHERE i.collection_id = c.id AND i.public = 1)"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections c WHERE "+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sets: %w", err)
	}

	limit, offset := limitOffset(q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx,
		"SELECT c.id, c.public FROM collections c WHERE "+where+" ORDER BY c.id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query sets: %w", err)
	}
	defer rows.Close()

	var sets []Set
	var ids []int64
	for rows.Next() {
		var set Set
		if err := rows.Scan(&set.ID, &set.Public); err != nil {
			return nil, 0, err
		}
		sets = append(sets, set)
		ids = append(ids, set.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	texts, err := s.elementTexts(ctx, recordTypeCollection, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range sets {
		e := texts[sets[i].ID]
		if titles := e.Texts(DublinCore, "Title"); len(titles) > 0 {
			sets[i].Name = titles[0]
		} else {
			sets[i].Name = "Collection #" + strconv.FormatInt(sets[i].ID, 10)
		}
		sets[i].Descriptions = e.Texts(DublinCore, "Description")
	}
	return sets, total, nil
}

func insertElementTexts(ctx context.Context, tx *sql.Tx, recordType string, id int64, e Elements) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM element_texts WHERE record_type = ? AND record_id = ?", recordType, id); err != nil {
		return err
	}
	for set, elements := range e {
		for element, texts := range elements {
			for _, text := range texts {
				_, err := tx.ExecContext(ctx,
					"INSERT INTO element_texts (record_type, record_id, element_set, element, text) VALUES (?, ?, ?, ?, ?)",
					recordType, id, set, element, text)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PutRecord inserts or replaces a record with its element texts and files.
// A zero ID is assigned by the database, zero times default to now.
func (s *SQLStore) PutRecord(ctx context.Context, rec *Record) error {
	now := time.Now()
	if rec.Added.IsZero() {
		rec.Added = now
	}
	if rec.Modified.IsZero() {
		rec.Modified = rec.Added
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var set any
	if rec.SetID != nil {
		set = *rec.SetID
	}

	if rec.ID == 0 {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO items (collection_id, item_type, public, added, modified) VALUES (?, ?, ?, ?, ?)",
			set, rec.ItemType, rec.Public, formatTime(rec.Added), formatTime(rec.Modified))
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, collection_id, item_type, public, added, modified) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET collection_id = excluded.collection_id, item_type = excluded.item_type,
				public = excluded.public, added = excluded.added, modified = excluded.modified`,
			rec.ID, set, rec.ItemType, rec.Public, formatTime(rec.Added), formatTime(rec.Modified))
		if err != nil {
			return fmt.Errorf("upsert record %d: %w", rec.ID, err)
		}
	}

	if err := insertElementTexts(ctx, tx, recordTypeItem, rec.ID, rec.Elements); err != nil {
		return fmt.Errorf("record %d element texts: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM element_texts WHERE record_type = ? AND record_id IN (SELECT id FROM files WHERE item_id = ?)",
		recordTypeFile, rec.ID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE item_id = ?", rec.ID); err != nil {
		return err
	}

	for i := range rec.Files {
		f := &rec.Files[i]
		var id any
		if f.ID != 0 {
			id = f.ID
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO files (id, item_id, filename, original_filename, mime_type, checksum) VALUES (?, ?, ?, ?, ?, ?)",
			id, rec.ID, f.Filename, f.OriginalFilename, f.MimeType, f.Checksum)
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.Filename, err)
		}
		if f.ID == 0 {
			if f.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		if err := insertElementTexts(ctx, tx, recordTypeFile, f.ID, f.Elements); err != nil {
			return fmt.Errorf("file %d element texts: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// PutSet inserts or replaces a collection. Its name and descriptions are
// stored as Dublin Core Title and Description.
func (s *SQLStore) PutSet(ctx context.Context, set *Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if set.ID == 0 {
		res, err := tx.ExecContext(ctx, "INSERT INTO collections (public) VALUES (?)", set.Public)
		if err != nil {
			return fmt.Errorf("insert set: %w", err)
		}
		if set.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	} else {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO collections (id, public) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET public = excluded.public",
			set.ID, set.Public)
		if err != nil {
			return fmt.Errorf("upsert set %d: %w", set.ID, err)
		}
	}

	e := make(Elements)
	if set.Name != "" {
		e.Add(DublinCore, "Title", set.Name)
	}
	for _, d := range set.Descriptions {
		e.Add(DublinCore, "Description", d)
	}
	if err := insertElementTexts(ctx, tx, recordTypeCollection, set.ID, e); err != nil {
		return fmt.Errorf("set %d element texts: %w", set.ID, err)
	}

	return tx.Commit()
}
