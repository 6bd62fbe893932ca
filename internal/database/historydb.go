package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/deskmaster/internal/model"
)

// FileName is the database file created in the database directory.
const FileName = "deskmaster.db"

// timeLayout stores times in UTC with a fixed width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// HistoryDB stores the history of DeskMaster sessions in SQLite.
// One file holds every session so history can be listed across runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNoDatabase, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per run; summary_json is filled in when the run ends
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		keywords TEXT NOT NULL,
		summary_json TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- One row per processed result page
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		keyword TEXT NOT NULL,
		page INTEGER NOT NULL,
		candidates INTEGER NOT NULL,
		opened INTEGER NOT NULL,
		open_failed INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		closed INTEGER NOT NULL,
		pruned INTEGER NOT NULL,
		captcha TEXT,
		captcha_attempts INTEGER DEFAULT 0,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_session ON pages(session_id);

	-- Every tab open attempt
	CREATE TABLE IF NOT EXISTS opened_tabs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		keyword TEXT NOT NULL,
		page INTEGER NOT NULL,
		label TEXT,
		reviews INTEGER NOT NULL,
		ok INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_opened_session ON opened_tabs(session_id);

	-- Every merchant classification
	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		keyword TEXT NOT NULL,
		page INTEGER NOT NULL,
		tab INTEGER NOT NULL,
		url TEXT,
		domain TEXT,
		verdict TEXT NOT NULL,
		reason TEXT,
		closed INTEGER NOT NULL,
		cause TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_session ON verdicts(session_id);
	CREATE INDEX IF NOT EXISTS idx_verdicts_domain ON verdicts(domain);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// StartSession records a new running session.
func (hdb *HistoryDB) StartSession(ctx context.Context, s *model.Session, keywords []string) error {
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to serialize keywords: %w", err)
	}

	_, err = hdb.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, keywords) VALUES (?, ?, ?)`,
		s.ID,
		s.StartedAt.UTC().Format(timeLayout),
		string(keywordsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// SavePage stores one page run with its open attempts and verdicts.
func (hdb *HistoryDB) SavePage(ctx context.Context, sessionID string, run *model.PageRun) (err error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := run.Stat()
	attempts := 0
	if run.Captcha != nil {
		attempts = run.Captcha.Attempts
	}

	if _, err = tx.ExecContext(ctx, `
	INSERT INTO pages (session_id, keyword, page, candidates, opened, open_failed, processed, closed, pruned, captcha, captcha_attempts, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID,
		st.Keyword,
		st.Page,
		st.Candidates,
		st.Opened,
		st.OpenFailed,
		st.Processed,
		st.Closed,
		st.Pruned,
		sql.NullString{String: st.Captcha, Valid: st.Captcha != ""},
		attempts,
		st.Error,
	); err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}

	for _, o := range run.Opened {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO opened_tabs (session_id, keyword, page, label, reviews, ok) VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, run.Keyword, run.Page, o.Label, o.Reviews, o.OK,
		); err != nil {
			return fmt.Errorf("failed to insert opened tab: %w", err)
		}
	}

	for _, v := range run.Verdicts {
		if _, err = tx.ExecContext(ctx, `
		INSERT INTO verdicts (session_id, keyword, page, tab, url, domain, verdict, reason, closed, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sessionID, run.Keyword, run.Page, v.Tab, v.URL, v.Domain, v.Verdict.String(), v.Reason, v.Closed, v.Cause,
		); err != nil {
			return fmt.Errorf("failed to insert verdict: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page: %w", err)
	}
	return nil
}

// FinishSession stores the final summary of a session.
func (hdb *HistoryDB) FinishSession(ctx context.Context, summary *model.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	res, err := hdb.db.ExecContext(ctx, `
	UPDATE sessions SET finished_at = ?, status = ?, summary_json = ?, error = ?
	WHERE id = ?
	`,
		summary.FinishedAt.UTC().Format(timeLayout),
		string(summary.Status),
		string(summaryJSON),
		summary.Error,
		summary.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, summary.SessionID)
	}
	return nil
}

// SessionMetadata contains summary information about a stored session.
// This is used for listing history without loading every page.
type SessionMetadata struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Keywords   []string
	Opened     int
	Closed     int
}

// ListSessions returns the most recent sessions first.
// limit <= 0 returns every session.
func (hdb *HistoryDB) ListSessions(ctx context.Context, limit int) ([]SessionMetadata, error) {
	query := `
	SELECT s.id, s.started_at, COALESCE(s.finished_at, ''), s.status, s.keywords,
		COALESCE((SELECT SUM(opened) FROM pages p WHERE p.session_id = s.id), 0),
		COALESCE((SELECT SUM(closed) FROM pages p WHERE p.session_id = s.id), 0)
	FROM sessions s
	ORDER BY s.started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		var started, finished, keywordsJSON string

		if err := rows.Scan(&meta.ID, &started, &finished, &meta.Status, &keywordsJSON, &meta.Opened, &meta.Closed); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		if err := json.Unmarshal([]byte(keywordsJSON), &meta.Keywords); err != nil {
			meta.Keywords = nil
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ResolveSessionID expands a unique id prefix to the full session id.
func (hdb *HistoryDB) ResolveSessionID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrSessionNotFound
	}
	rows, err := hdb.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve session id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

// GetSummary returns the stored summary of a session.
// It returns nil when the session is unknown or has not finished.
func (hdb *HistoryDB) GetSummary(ctx context.Context, id string) (*model.Summary, error) {
	var summaryJSON sql.NullString
	err := hdb.db.QueryRowContext(ctx, `SELECT summary_json FROM sessions WHERE id = ?`, id).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !summaryJSON.Valid || summaryJSON.String == "" {
		return nil, nil
	}

	var summary model.Summary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// GetPages returns the pages of a session in processing order.
func (hdb *HistoryDB) GetPages(ctx context.Context, sessionID string) ([]model.PageStat, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT keyword, page, candidates, opened, open_failed, processed, closed, pruned,
		COALESCE(captcha, ''), COALESCE(error, '')
	FROM pages
	WHERE session_id = ?
	ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageStat
	for rows.Next() {
		var p model.PageStat
		if err := rows.Scan(&p.Keyword, &p.Page, &p.Candidates, &p.Opened, &p.OpenFailed,
			&p.Processed, &p.Closed, &p.Pruned, &p.Captcha, &p.Error); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// GetVerdicts returns the tab classifications of a session in order.
func (hdb *HistoryDB) GetVerdicts(ctx context.Context, sessionID string) ([]model.TabVerdict, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT keyword, page, tab, COALESCE(url, ''), COALESCE(domain, ''), verdict,
		COALESCE(reason, ''), closed, COALESCE(cause, '')
	FROM verdicts
	WHERE session_id = ?
	ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []model.TabVerdict
	for rows.Next() {
		var v model.TabVerdict
		var verdict string
		if err := rows.Scan(&v.Keyword, &v.Page, &v.Tab, &v.URL, &v.Domain, &verdict,
			&v.Reason, &v.Closed, &v.Cause); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if verdict == model.VerdictInternal.String() {
			v.Verdict = model.VerdictInternal
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// DomainCount is how often one registrable domain was classified.
type DomainCount struct {
	Domain   string
	External int
	Internal int
}

// DomainCounts aggregates verdicts by domain across every session,
// most frequent external domains first.
func (hdb *HistoryDB) DomainCounts(ctx context.Context) ([]DomainCount, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT domain,
		SUM(CASE WHEN verdict = 'external' THEN 1 ELSE 0 END),
		SUM(CASE WHEN verdict = 'internal' THEN 1 ELSE 0 END)
	FROM verdicts
	WHERE domain <> ''
	GROUP BY domain
	ORDER BY 2 DESC, domain
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count domains: %w", err)
	}
	defer rows.Close()

	var counts []DomainCount
	for rows.Next() {
		var c DomainCount
		if err := rows.Scan(&c.Domain, &c.External, &c.Internal); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns zero time when none match.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
