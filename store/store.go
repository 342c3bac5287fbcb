// Package store is the relational home of the parsed corpus: documents,
// actors, votes, document relationships and meeting utterances. sqlite is
// the default backend; postgres is used when a postgres DSN is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id {{id}},
		symbol TEXT NOT NULL UNIQUE,
		doc_type TEXT NOT NULL,
		session INTEGER,
		title TEXT,
		date TEXT,
		doc_metadata {{json}},
		body_text TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS actors (
		id {{id}},
		name TEXT NOT NULL UNIQUE,
		actor_type TEXT DEFAULT 'country',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id {{id}},
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		actor_id INTEGER NOT NULL REFERENCES actors(id),
		vote_type TEXT NOT NULL,
		vote_context TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS document_relationships (
		id {{id}},
		source_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		target_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		relationship_type TEXT NOT NULL,
		rel_metadata {{json}},
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS utterances (
		id {{id}},
		meeting_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		section_id TEXT,
		agenda_item_number TEXT,
		speaker_actor_id INTEGER REFERENCES actors(id) ON DELETE SET NULL,
		speaker_name TEXT,
		speaker_role TEXT,
		speaker_raw TEXT,
		speaker_affiliation TEXT,
		text TEXT NOT NULL,
		word_count INTEGER,
		position_in_meeting INTEGER,
		position_in_section INTEGER,
		utterance_metadata {{json}},
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS utterance_documents (
		id {{id}},
		utterance_id INTEGER NOT NULL REFERENCES utterances(id) ON DELETE CASCADE,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		reference_type TEXT,
		context TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_document ON votes(document_id)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_actor ON votes(actor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_source ON document_relationships(source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_target ON document_relationships(target_id)`,
	`CREATE INDEX IF NOT EXISTS idx_utterances_meeting ON utterances(meeting_id)`,
	`CREATE INDEX IF NOT EXISTS idx_utterances_agenda_item ON utterances(agenda_item_number)`,
	`CREATE INDEX IF NOT EXISTS idx_utterance_documents_utterance ON utterance_documents(utterance_id)`,
	`CREATE INDEX IF NOT EXISTS idx_utterance_documents_document ON utterance_documents(document_id)`,
}

// Tables in drop order.
var Tables = []string{
	"utterance_documents",
	"utterances",
	"document_relationships",
	"votes",
	"actors",
	"documents",
}

type Store struct {
	db     *sql.DB
	driver string

	mu     sync.Mutex
	actors map[string]int64
}

// Open connects and creates the schema. driver is DriverSQLite or
// DriverPostgres; for sqlite dsn is a file path.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "", "sqlite", DriverSQLite:
		driver = DriverSQLite
	case "postgresql", DriverPostgres:
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, driver: driver, actors: map[string]int64{}}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
			}
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("database ready", "driver", driver)
	return s, nil
}

func (s *Store) migrate() error {
	id, js := "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	if s.driver == DriverPostgres {
		id, js = "SERIAL PRIMARY KEY", "JSONB"
	}
	r := strings.NewReplacer("{{id}}", id, "{{json}}", js)

	for _, stmt := range tables {
		if _, err := s.db.Exec(r.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

// Reset drops and recreates every table.
func (s *Store) Reset() error {
	for _, t := range Tables {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("failed to drop %s: %w", t, err)
		}
	}

	s.mu.Lock()
	s.actors = map[string]int64{}
	s.mu.Unlock()

	return s.migrate()
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres. Statements in
// this package never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Document is a row of the documents table. Metadata is stored as JSON.
type Document struct {
	ID        int64
	Symbol    string
	DocType   string
	Session   int
	Title     string
	Date      string
	Metadata  map[string]any
	BodyText  string
	CreatedAt time.Time
}

func encodeJSON(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

// Tx is a unit of work. The loaders use one per input file so that a bad
// file never leaves half its rows behind.
type Tx struct {
	s      *Store
	tx     *sql.Tx
	actors map[string]int64
}

// WithTx runs fn in a transaction, committing if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // noop if tx has been committed

	t := &Tx{s: s, tx: tx, actors: map[string]int64{}}
	if err := fn(t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	// actors created inside a rolled back transaction must not be cached
	s.mu.Lock()
	for name, id := range t.actors {
		s.actors[name] = id
	}
	s.mu.Unlock()
	return nil
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.s.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.s.rebind(query), args...)
}

func (t *Tx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := t.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}

const documentColumns = `id, symbol, doc_type, session, title, date, doc_metadata, body_text, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*Document, error) {
	var (
		d                       Document
		session                 sql.NullInt64
		title, date, meta, body sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Symbol, &d.DocType, &session, &title, &date, &meta, &body, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Session = int(session.Int64)
	d.Title = title.String
	d.Date = date.String
	d.BodyText = body.String
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &d.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt doc_metadata for %s: %w", d.Symbol, err)
		}
	}
	return &d, nil
}

// Document returns nil, nil when symbol is not stored.
func (t *Tx) Document(ctx context.Context, symbol string) (*Document, error) {
	d, err := scanDocument(t.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE symbol = ?`, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", symbol, err)
	}
	return d, nil
}

// Fill selects which columns UpsertDocument overwrites on an existing row.
// Columns not named are only filled when blank.
type Fill struct {
	DocType  bool
	Metadata bool
}

// UpsertDocument inserts d or completes the stored row for d.Symbol. Blank
// stored columns take the new value. An existing body_text is never
// replaced and a resolution is never retyped.
func (t *Tx) UpsertDocument(ctx context.Context, d Document, fill Fill) (int64, error) {
	if d.Symbol == "" {
		return 0, errors.New("document has no symbol")
	}

	cur, err := t.Document(ctx, d.Symbol)
	if err != nil {
		return 0, err
	}

	if cur == nil {
		meta, err := encodeJSON(d.Metadata)
		if err != nil {
			return 0, err
		}
		id, err := t.insert(ctx, `
		INSERT INTO documents (symbol, doc_type, session, title, date, doc_metadata, body_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.Symbol, d.DocType, nullInt(d.Session), nullString(d.Title), nullString(d.Date), meta, nullString(d.BodyText))
		if err != nil {
			return 0, fmt.Errorf("failed to insert document %s: %w", d.Symbol, err)
		}
		return id, nil
	}

	if cur.DocType == "" || (d.DocType != "" && fill.DocType && cur.DocType != "resolution") {
		cur.DocType = d.DocType
	}
	if cur.Session == 0 {
		cur.Session = d.Session
	}
	if cur.Title == "" {
		cur.Title = d.Title
	}
	if cur.Date == "" {
		cur.Date = d.Date
	}
	if cur.BodyText == "" {
		cur.BodyText = d.BodyText
	}
	if len(cur.Metadata) == 0 || (fill.Metadata && len(d.Metadata) > 0) {
		cur.Metadata = d.Metadata
	}

	meta, err := encodeJSON(cur.Metadata)
	if err != nil {
		return 0, err
	}
	_, err = t.exec(ctx, `
	UPDATE documents SET doc_type = ?, session = ?, title = ?, date = ?, doc_metadata = ?, body_text = ?
	WHERE id = ?`,
		cur.DocType, nullInt(cur.Session), nullString(cur.Title), nullString(cur.Date), meta, nullString(cur.BodyText), cur.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update document %s: %w", d.Symbol, err)
	}
	return cur.ID, nil
}

// EnsurePlaceholder returns the id of symbol, creating a stub of docType
// with the given metadata when it is not stored yet.
func (t *Tx) EnsurePlaceholder(ctx context.Context, symbol, docType string, meta map[string]any) (int64, error) {
	return t.UpsertDocument(ctx, Document{Symbol: symbol, DocType: docType, Metadata: meta}, Fill{DocType: true})
}

// DocumentID returns 0 when symbol is not stored.
func (t *Tx) DocumentID(ctx context.Context, symbol string) (int64, error) {
	var id int64
	err := t.queryRow(ctx, `SELECT id FROM documents WHERE symbol = ?`, symbol).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// SetMetadataKey adds key to a document's metadata unless already present.
func (t *Tx) SetMetadataKey(ctx context.Context, id int64, key string, value any) error {
	var raw sql.NullString
	if err := t.queryRow(ctx, `SELECT doc_metadata FROM documents WHERE id = ?`, id).Scan(&raw); err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	meta := map[string]any{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &meta); err != nil {
			return err
		}
	}
	if _, ok := meta[key]; ok {
		return nil
	}
	meta[key] = value

	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `UPDATE documents SET doc_metadata = ? WHERE id = ?`, string(b), id)
	return err
}

// GetOrCreateActor returns the id of the actor called name. Ids are cached
// for the life of the store.
func (t *Tx) GetOrCreateActor(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("empty actor name")
	}

	if id, ok := t.actors[name]; ok {
		return id, nil
	}
	t.s.mu.Lock()
	id, ok := t.s.actors[name]
	t.s.mu.Unlock()
	if ok {
		return id, nil
	}

	err := t.queryRow(ctx, `SELECT id FROM actors WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		id, err = t.insert(ctx, `INSERT INTO actors (name, actor_type) VALUES (?, 'country')`, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve actor %q: %w", name, err)
	}

	t.actors[name] = id
	return id, nil
}

// Vote types as stored.
const (
	InFavour   = "in_favour"
	Against    = "against"
	Abstaining = "abstaining"
)

// AddVote records one country's vote. It reports false when the same vote
// is already stored.
func (t *Tx) AddVote(ctx context.Context, documentID, actorID int64, voteType, voteContext string) (bool, error) {
	var n int
	err := t.queryRow(ctx, `
	SELECT COUNT(*) FROM votes WHERE document_id = ? AND actor_id = ? AND vote_type = ?`,
		documentID, actorID, voteType).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	_, err = t.exec(ctx, `
	INSERT INTO votes (document_id, actor_id, vote_type, vote_context) VALUES (?, ?, ?, ?)`,
		documentID, actorID, voteType, nullString(voteContext))
	if err != nil {
		return false, fmt.Errorf("failed to insert vote: %w", err)
	}
	return true, nil
}

// AddRelationship links source to target unless the same link exists.
func (t *Tx) AddRelationship(ctx context.Context, sourceID, targetID int64, relType string, meta map[string]any) error {
	var n int
	err := t.queryRow(ctx, `
	SELECT COUNT(*) FROM document_relationships
	WHERE source_id = ? AND target_id = ? AND relationship_type = ?`,
		sourceID, targetID, relType).Scan(&n)
	if err != nil || n > 0 {
		return err
	}

	m, err := encodeJSON(meta)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `
	INSERT INTO document_relationships (source_id, target_id, relationship_type, rel_metadata)
	VALUES (?, ?, ?, ?)`, sourceID, targetID, relType, m)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

type Utterance struct {
	ID                 int64
	MeetingID          int64
	SectionID          string
	AgendaItemNumber   string
	SpeakerActorID     int64
	SpeakerName        string
	SpeakerRole        string
	SpeakerRaw         string
	SpeakerAffiliation string
	Text               string
	WordCount          int
	PositionInMeeting  int
	PositionInSection  int
	Metadata           map[string]any
}

func (t *Tx) AddUtterance(ctx context.Context, u Utterance) (int64, error) {
	if u.Text == "" {
		return 0, errors.New("utterance has no text")
	}

	meta, err := encodeJSON(u.Metadata)
	if err != nil {
		return 0, err
	}
	speaker := sql.NullInt64{Int64: u.SpeakerActorID, Valid: u.SpeakerActorID != 0}

	id, err := t.insert(ctx, `
	INSERT INTO utterances (meeting_id, section_id, agenda_item_number, speaker_actor_id, speaker_name,
		speaker_role, speaker_raw, speaker_affiliation, text, word_count, position_in_meeting,
		position_in_section, utterance_metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.MeetingID, nullString(u.SectionID), nullString(u.AgendaItemNumber), speaker, nullString(u.SpeakerName),
		nullString(u.SpeakerRole), nullString(u.SpeakerRaw), nullString(u.SpeakerAffiliation), u.Text, u.WordCount,
		u.PositionInMeeting, u.PositionInSection, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to insert utterance: %w", err)
	}
	return id, nil
}

// LinkUtteranceDocument records that an utterance refers to a document. It
// reports false when the pair is already linked.
func (t *Tx) LinkUtteranceDocument(ctx context.Context, utteranceID, documentID int64, refType, snippet string) (bool, error) {
	var n int
	err := t.queryRow(ctx, `
	SELECT COUNT(*) FROM utterance_documents WHERE utterance_id = ? AND document_id = ?`,
		utteranceID, documentID).Scan(&n)
	if err != nil || n > 0 {
		return false, err
	}

	_, err = t.exec(ctx, `
	INSERT INTO utterance_documents (utterance_id, document_id, reference_type, context) VALUES (?, ?, ?, ?)`,
		utteranceID, documentID, refType, nullString(snippet))
	if err != nil {
		return false, fmt.Errorf("failed to link utterance: %w", err)
	}
	return true, nil
}

// DeleteUtterances removes a meeting's utterances so that a reload does not
// duplicate them.
func (t *Tx) DeleteUtterances(ctx context.Context, meetingID int64) error {
	_, err := t.exec(ctx, `
	DELETE FROM utterance_documents WHERE utterance_id IN (SELECT id FROM utterances WHERE meeting_id = ?)`, meetingID)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `DELETE FROM utterances WHERE meeting_id = ?`, meetingID)
	return err
}

// Document returns nil, nil when symbol is not stored.
func (s *Store) Document(ctx context.Context, symbol string) (*Document, error) {
	var d *Document
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		d, err = tx.Document(ctx, symbol)
		return err
	})
	return d, err
}

// Documents returns every document ordered by symbol.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// BodyText returns the stored body text for each symbol that has one.
func (s *Store) BodyText(ctx context.Context, symbols []string) (map[string]string, error) {
	out := map[string]string{}
	if len(symbols) == 0 {
		return out, nil
	}

	args := make([]any, len(symbols))
	for i, sym := range symbols {
		args[i] = sym
	}
	query := `SELECT symbol, body_text FROM documents WHERE body_text IS NOT NULL AND symbol IN (` +
		placeholders(len(symbols)) + `)`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch body text: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym, text string
		if err := rows.Scan(&sym, &text); err != nil {
			return nil, err
		}
		if text != "" {
			out[sym] = text
		}
	}
	return out, rows.Err()
}

// UtteranceText returns utterance text by id.
func (s *Store) UtteranceText(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, text FROM utterances WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch utterance text: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		out[id] = text
	}
	return out, rows.Err()
}

// MeetingUtterance is an utterance together with its meeting's symbol.
type MeetingUtterance struct {
	MeetingSymbol string
	Utterance
}

// Utterances returns every utterance ordered by meeting and position.
func (s *Store) Utterances(ctx context.Context) ([]MeetingUtterance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+utteranceColumns+`
	FROM utterances u JOIN documents d ON d.id = u.meeting_id
	ORDER BY d.symbol, u.position_in_meeting`)
	if err != nil {
		return nil, fmt.Errorf("failed to list utterances: %w", err)
	}
	defer rows.Close()
	return scanUtterances(rows)
}

const utteranceColumns = `d.symbol, u.id, u.meeting_id, u.section_id, u.agenda_item_number, u.speaker_name,
		u.speaker_affiliation, u.text, u.word_count, u.position_in_meeting`

func scanUtterances(rows *sql.Rows) ([]MeetingUtterance, error) {
	var out []MeetingUtterance
	for rows.Next() {
		var (
			u                                   MeetingUtterance
			section, item, speaker, affiliation sql.NullString
			wordCount, position                 sql.NullInt64
		)
		err := rows.Scan(&u.MeetingSymbol, &u.ID, &u.MeetingID, &section, &item, &speaker,
			&affiliation, &u.Text, &wordCount, &position)
		if err != nil {
			return nil, err
		}
		u.SectionID = section.String
		u.AgendaItemNumber = item.String
		u.SpeakerName = speaker.String
		u.SpeakerAffiliation = affiliation.String
		u.WordCount = int(wordCount.Int64)
		u.PositionInMeeting = int(position.Int64)
		out = append(out, u)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Counts returns the number of rows in each table.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, t := range Tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		out[t] = n
	}
	return out, nil
}
