// Package semstore implements the semantic artifact store backing
// coverage analysis and supersession chains.
//
// It uses SQLite with FTS5 full-text search so related decisions can be
// surfaced by content, not just by ID. Records are append-only: nothing
// is ever deleted, replacement happens through supersession, which forms
// an immutable forward chain.
package semstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadySuperseded is returned when superseding a record that was
// already replaced. Chains only grow at the head.
var ErrAlreadySuperseded = errors.New("record already superseded")

// ─── Types ───────────────────────────────────────────────────────────────────

// RecordType classifies a persisted artifact record.
type RecordType string

const (
	TypeCapability RecordType = "capability"
	TypeDecision   RecordType = "decision"
	TypeEntity     RecordType = "entity"
)

// Subtype refines capabilities. Decisions and entities carry no subtype.
type Subtype string

const (
	SubtypeFunctional    Subtype = "functional"
	SubtypeNonFunctional Subtype = "non_functional"
	SubtypeOperational   Subtype = "operational"
)

// prefixes maps (type, subtype) to its ID pool. Each pool allocates
// independently, so CAP-F-003 and DEC-003 coexist.
var prefixes = map[RecordType]map[Subtype]string{
	TypeCapability: {
		SubtypeFunctional:    "CAP-F",
		SubtypeNonFunctional: "CAP-N",
		SubtypeOperational:   "CAP-O",
	},
	TypeDecision: {"": "DEC"},
	TypeEntity:   {"": "ENT"},
}

// PrefixFor returns the ID prefix for a record type and subtype.
func PrefixFor(typ RecordType, sub Subtype) (string, error) {
	pools, ok := prefixes[typ]
	if !ok {
		return "", fmt.Errorf("invalid record type %q: must be one of: capability, decision, entity", typ)
	}
	prefix, ok := pools[sub]
	if !ok {
		return "", fmt.Errorf("invalid subtype %q for record type %q", sub, typ)
	}
	return prefix, nil
}

// Record is one persisted semantic artifact.
type Record struct {
	ID           string            `json:"id"`
	Type         RecordType        `json:"type"`
	Subtype      Subtype           `json:"subtype,omitempty"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Affects      []string          `json:"affects,omitempty"`
	DependsOn    []string          `json:"depends_on,omitempty"`
	CreatedAt    string            `json:"created_at"`
	Supersedes   string            `json:"supersedes,omitempty"`
	SupersededBy string            `json:"superseded_by,omitempty"`
	SourceStage  string            `json:"source_stage,omitempty"`
	Rationale    string            `json:"rationale,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Superseded reports whether the record has been replaced.
func (r *Record) Superseded() bool {
	return r.SupersededBy != ""
}

// SearchResult embeds a Record with its FTS5 rank score.
type SearchResult struct {
	Record
	Rank float64 `json:"rank"`
}

// SearchOptions holds filters for FTS5 search queries.
type SearchOptions struct {
	Type              RecordType `json:"type,omitempty"`
	IncludeSuperseded bool       `json:"include_superseded,omitempty"`
	Limit             int        `json:"limit,omitempty"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds semantic store configuration.
type Config struct {
	DataDir          string
	MaxSearchResults int
}

// DefaultConfig returns the default configuration for the store.
func DefaultConfig(root string) Config {
	return Config{
		DataDir:          filepath.Join(root, "artifex"),
		MaxSearchResults: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the semantic artifact store backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("semstore: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "semantic.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("semstore: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("semstore: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("semstore: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id            TEXT PRIMARY KEY,
			type          TEXT NOT NULL,
			subtype       TEXT NOT NULL DEFAULT '',
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			tags          TEXT NOT NULL DEFAULT '[]',
			affects       TEXT NOT NULL DEFAULT '[]',
			depends_on    TEXT NOT NULL DEFAULT '[]',
			created_at    TEXT NOT NULL,
			supersedes    TEXT,
			superseded_by TEXT,
			source_stage  TEXT,
			rationale     TEXT,
			metadata      TEXT NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_rec_type       ON records(type, subtype);
		CREATE INDEX IF NOT EXISTS idx_rec_superseded ON records(superseded_by);
		CREATE INDEX IF NOT EXISTS idx_rec_created    ON records(created_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			name,
			description,
			rationale,
			tags,
			type,
			content='records',
			content_rowid='rowid'
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Create FTS triggers (idempotent)
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='rec_fts_insert'",
	).Scan(&name)

	if err == sql.ErrNoRows {
		triggers := `
			CREATE TRIGGER rec_fts_insert AFTER INSERT ON records BEGIN
				INSERT INTO records_fts(rowid, name, description, rationale, tags, type)
				VALUES (new.rowid, new.name, new.description, new.rationale, new.tags, new.type);
			END;

			CREATE TRIGGER rec_fts_update AFTER UPDATE ON records BEGIN
				INSERT INTO records_fts(records_fts, rowid, name, description, rationale, tags, type)
				VALUES ('delete', old.rowid, old.name, old.description, old.rationale, old.tags, old.type);
				INSERT INTO records_fts(rowid, name, description, rationale, tags, type)
				VALUES (new.rowid, new.name, new.description, new.rationale, new.tags, new.type);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return nil
}

// ─── ID allocation ───────────────────────────────────────────────────────────

// nextID allocates the next ID in the (type, subtype) pool: the highest
// existing numeric suffix plus one. Gaps are never refilled, so an ID is
// never reused for a different artifact.
func nextID(q interface {
	Query(query string, args ...any) (*sql.Rows, error)
}, typ RecordType, sub Subtype) (string, error) {
	prefix, err := PrefixFor(typ, sub)
	if err != nil {
		return "", err
	}

	rows, err := q.Query(`SELECT id FROM records WHERE type = ? AND subtype = ?`, string(typ), string(sub))
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	max := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if n := numericSuffix(id, prefix); n > max {
			max = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1), nil
}

// numericSuffix extracts NNN from "<PREFIX>-NNN", or 0 when malformed.
func numericSuffix(id, prefix string) int {
	rest, ok := strings.CutPrefix(id, prefix+"-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ─── Records ─────────────────────────────────────────────────────────────────

// Put inserts a record. A record with an empty ID gets the next ID from
// its (type, subtype) pool; a non-empty ID is kept as-is. Returns the
// stored ID.
func (s *Store) Put(rec Record) (string, error) {
	if err := validateRecord(&rec); err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertRecord(tx, rec)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func validateRecord(rec *Record) error {
	if _, err := PrefixFor(rec.Type, rec.Subtype); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Name) == "" {
		return fmt.Errorf("semstore: record name is required")
	}
	return nil
}

func insertRecord(tx *sql.Tx, rec Record) (string, error) {
	id := rec.ID
	if id == "" {
		var err error
		id, err = nextID(tx, rec.Type, rec.Subtype)
		if err != nil {
			return "", err
		}
	}

	createdAt := rec.CreatedAt
	if createdAt == "" {
		createdAt = timeNow().UTC().Format(time.RFC3339)
	}

	_, err := tx.Exec(
		`INSERT INTO records
		   (id, type, subtype, name, description, tags, affects, depends_on,
		    created_at, supersedes, superseded_by, source_stage, rationale, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(rec.Type), string(rec.Subtype), rec.Name, rec.Description,
		marshalList(rec.Tags), marshalList(rec.Affects), marshalList(rec.DependsOn),
		createdAt, nullableString(rec.Supersedes), nullableString(rec.SupersededBy),
		nullableString(rec.SourceStage), nullableString(rec.Rationale),
		marshalMap(rec.Metadata),
	)
	if err != nil {
		return "", fmt.Errorf("semstore: insert %s: %w", id, err)
	}
	return id, nil
}

const recordColumns = `id, type, subtype, name, description, tags, affects, depends_on,
	created_at, supersedes, superseded_by, source_stage, rationale, metadata`

// Get retrieves one record by ID.
func (s *Store) Get(id string) (*Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var tags, affects, dependsOn, metadata string
	var supersedes, supersededBy, sourceStage, rationale sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Type, &rec.Subtype, &rec.Name, &rec.Description,
		&tags, &affects, &dependsOn, &rec.CreatedAt,
		&supersedes, &supersededBy, &sourceStage, &rationale, &metadata,
	)
	if err != nil {
		return nil, err
	}
	rec.Tags = unmarshalList(tags)
	rec.Affects = unmarshalList(affects)
	rec.DependsOn = unmarshalList(dependsOn)
	rec.Metadata = unmarshalMap(metadata)
	rec.Supersedes = supersedes.String
	rec.SupersededBy = supersededBy.String
	rec.SourceStage = sourceStage.String
	rec.Rationale = rationale.String
	return &rec, nil
}

// ListActive returns the non-superseded records of one type, ordered by
// ID. An empty type lists everything active.
func (s *Store) ListActive(typ RecordType) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE superseded_by IS NULL`
	args := []any{}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Search runs an FTS5 match over names, descriptions, rationales and
// tags. Superseded records are excluded unless opted in; bm25 rank
// orders the results.
func (s *Store) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("semstore: search query is required")
	}
	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	sqlQuery := `
		SELECT ` + qualify(recordColumns, "r") + `, f.rank
		FROM records_fts f
		JOIN records r ON r.rowid = f.rowid
		WHERE records_fts MATCH ?
	`
	args := []any{ftsQuery(query)}

	if opts.Type != "" {
		sqlQuery += ` AND r.type = ?`
		args = append(args, string(opts.Type))
	}
	if !opts.IncludeSuperseded {
		sqlQuery += ` AND r.superseded_by IS NULL`
	}
	sqlQuery += ` ORDER BY f.rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("semstore: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var res SearchResult
		var tags, affects, dependsOn, metadata string
		var supersedes, supersededBy, sourceStage, rationale sql.NullString
		err := rows.Scan(
			&res.ID, &res.Type, &res.Subtype, &res.Name, &res.Description,
			&tags, &affects, &dependsOn, &res.CreatedAt,
			&supersedes, &supersededBy, &sourceStage, &rationale, &metadata,
			&res.Rank,
		)
		if err != nil {
			return nil, err
		}
		res.Tags = unmarshalList(tags)
		res.Affects = unmarshalList(affects)
		res.DependsOn = unmarshalList(dependsOn)
		res.Metadata = unmarshalMap(metadata)
		res.Supersedes = supersedes.String
		res.SupersededBy = supersededBy.String
		res.SourceStage = sourceStage.String
		res.Rationale = rationale.String
		out = append(out, res)
	}
	return out, rows.Err()
}

// Supersede atomically replaces oldID with a new record: the old record
// is marked superseded and the new one inserted with a back-reference,
// in one transaction. There is no public delete.
func (s *Store) Supersede(oldID string, newRec Record) (string, error) {
	if err := validateRecord(&newRec); err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var supersededBy sql.NullString
	err = tx.QueryRow(`SELECT superseded_by FROM records WHERE id = ?`, oldID).Scan(&supersededBy)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, oldID)
	}
	if err != nil {
		return "", err
	}
	if supersededBy.Valid && supersededBy.String != "" {
		return "", fmt.Errorf("%w: %s already superseded by %s", ErrAlreadySuperseded, oldID, supersededBy.String)
	}

	newRec.Supersedes = oldID
	newRec.SupersededBy = ""
	newID, err := insertRecord(tx, newRec)
	if err != nil {
		return "", err
	}

	if _, err := tx.Exec(`UPDATE records SET superseded_by = ? WHERE id = ?`, newID, oldID); err != nil {
		return "", fmt.Errorf("semstore: mark %s superseded: %w", oldID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return newID, nil
}

// Chain returns the supersession chain containing id, walked back to its
// root and forward to its head, oldest first.
func (s *Store) Chain(id string) ([]Record, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	// Walk back to the root.
	root := rec
	for root.Supersedes != "" {
		prev, err := s.Get(root.Supersedes)
		if err != nil {
			return nil, err
		}
		root = prev
	}

	// Walk forward to the head.
	chain := []Record{*root}
	cur := root
	for cur.SupersededBy != "" {
		next, err := s.Get(cur.SupersededBy)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *next)
		cur = next
	}
	return chain, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func marshalList(vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	b, err := json.Marshal(vals)
	if err != nil {
		panic(fmt.Sprintf("semstore: marshal list: %v", err))
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func marshalMap(vals map[string]string) string {
	if vals == nil {
		vals = map[string]string{}
	}
	b, err := json.Marshal(vals)
	if err != nil {
		panic(fmt.Sprintf("semstore: marshal map: %v", err))
	}
	return string(b)
}

func unmarshalMap(raw string) map[string]string {
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ftsQuery quotes each term so punctuation in user text cannot break
// the FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// qualify prefixes every column in a comma-separated list with a table
// alias.
func qualify(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
