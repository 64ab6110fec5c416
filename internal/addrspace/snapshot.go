package addrspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appErrors "uacommander/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const snapshotSchemaVersion = "1"

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	node_id      TEXT PRIMARY KEY,
	browse_name  TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	node_class   INTEGER NOT NULL,
	browsed      INTEGER NOT NULL DEFAULT 0,
	attributes   TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS refs (
	parent_id TEXT NOT NULL,
	child_id  TEXT NOT NULL,
	kind      INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	type_def  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (parent_id, child_id, kind)
);
CREATE INDEX IF NOT EXISTS refs_parent ON refs (parent_id, position);
`

// NodeRecord is everything a snapshot stores about one node.
type NodeRecord struct {
	Reference
	Browsed    bool
	Attributes []Attribute
	References []Reference
}

// buildSnapshotDSN creates a DSN for the snapshot database.
func buildSnapshotDSN(path string, readOnly bool) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	q := url.Values{}
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("mode", "rwc")
	}
	q.Add("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return u.String()
}

func openSnapshotDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Snapshot is a read-only Client backed by a SQLite file written by the
// snapshot command. Every call opens the file afresh, so a snapshot that is
// replaced on disk is picked up by the next browse.
type Snapshot struct {
	path string
	dsn  string
}

// OpenSnapshot validates the snapshot at path and returns a client for it.
func OpenSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "snapshot path is empty", nil)
	}
	if _, err := os.Stat(trimmed); err != nil {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "open snapshot "+trimmed, err)
	}
	s := &Snapshot{path: trimmed, dsn: buildSnapshotDSN(trimmed, true)}
	version, err := s.meta(ctx, "schema_version")
	if err != nil {
		return nil, err
	}
	if version != snapshotSchemaVersion {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed,
			fmt.Sprintf("snapshot %s has schema version %q, expected %q", trimmed, version, snapshotSchemaVersion), nil)
	}
	return s, nil
}

// Path returns the snapshot file path.
func (s *Snapshot) Path() string { return s.path }

func (s *Snapshot) withDB(ctx context.Context, fn func(*sql.DB) error) error {
	db, err := openSnapshotDB(ctx, s.dsn)
	if err != nil {
		return appErrors.New(appErrors.CodeSnapshotFailed, "open snapshot "+s.path, err)
	}
	defer func() {
		_ = db.Close()
	}()
	return fn(db)
}

func (s *Snapshot) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.withDB(ctx, func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return appErrors.New(appErrors.CodeSnapshotFailed, "read snapshot meta "+key, err)
		}
		return nil
	})
	return value, err
}

func (s *Snapshot) Browse(ctx context.Context, nodeID string) ([]Reference, error) {
	var refs []Reference
	err := s.withDB(ctx, func(db *sql.DB) error {
		var browsed bool
		err := db.QueryRowContext(ctx, `SELECT browsed FROM nodes WHERE node_id = ?`, nodeID).Scan(&browsed)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.New(appErrors.CodeNotFound, fmt.Sprintf("node %s is not in snapshot", nodeID), nil)
		}
		if err != nil {
			return appErrors.New(appErrors.CodeBrowseFailed, "browse "+nodeID, err)
		}
		if !browsed {
			return appErrors.New(appErrors.CodeNotFound, fmt.Sprintf("node %s was not browsed when the snapshot was taken", nodeID), nil)
		}

		rows, err := db.QueryContext(ctx, `
			SELECT r.child_id, n.browse_name, n.display_name, n.node_class, r.kind, r.type_def
			FROM refs r
			JOIN nodes n ON n.node_id = r.child_id
			WHERE r.parent_id = ?
			ORDER BY r.kind, r.position
		`, nodeID)
		if err != nil {
			return appErrors.New(appErrors.CodeBrowseFailed, "browse "+nodeID, err)
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			var ref Reference
			if err := rows.Scan(&ref.NodeID, &ref.BrowseName, &ref.DisplayName, &ref.NodeClass, &ref.Kind, &ref.TypeDefinition); err != nil {
				return appErrors.New(appErrors.CodeBrowseFailed, "scan reference of "+nodeID, err)
			}
			refs = append(refs, ref)
		}
		return rows.Err()
	})
	return refs, err
}

func (s *Snapshot) ReadAttributes(ctx context.Context, nodeID string) ([]Attribute, error) {
	var attrs []Attribute
	err := s.withDB(ctx, func(db *sql.DB) error {
		var payload string
		err := db.QueryRowContext(ctx, `SELECT attributes FROM nodes WHERE node_id = ?`, nodeID).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.New(appErrors.CodeNotFound, fmt.Sprintf("node %s is not in snapshot", nodeID), nil)
		}
		if err != nil {
			return appErrors.New(appErrors.CodeReadFailed, "read attributes of "+nodeID, err)
		}
		decoded, err := decodeAttributes([]byte(payload))
		if err != nil {
			return appErrors.New(appErrors.CodeSnapshotFailed, "read attributes of "+nodeID, err)
		}
		attrs = decoded
		return nil
	})
	return attrs, err
}

func (s *Snapshot) Monitor(context.Context, string) error {
	return appErrors.New(appErrors.CodeUnsupported, "monitoring is not available when browsing a snapshot", nil)
}

func (s *Snapshot) Unmonitor(context.Context, string) error {
	return ErrNotMonitored
}

func (s *Snapshot) Changes() <-chan ValueChange { return nil }

func (s *Snapshot) Describe() []string {
	lines := []string{"   snapshot       = " + s.path}
	ctx := context.Background()
	if endpoint, err := s.meta(ctx, "endpoint"); err == nil && endpoint != "" {
		lines = append(lines, "   captured from  = "+endpoint)
	}
	if created, err := s.meta(ctx, "created_at"); err == nil && created != "" {
		lines = append(lines, "   captured at    = "+created)
	}
	return lines
}

func (s *Snapshot) Close(context.Context) error { return nil }

// SnapshotWriter builds a snapshot in a temporary file and moves it into
// place on Commit, so readers never observe a partial snapshot.
type SnapshotWriter struct {
	path string
	tmp  string
	db   *sql.DB
}

// CreateSnapshot starts a new snapshot destined for path.
func CreateSnapshot(ctx context.Context, path, endpoint string) (*SnapshotWriter, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "snapshot path is empty", nil)
	}
	tmp := trimmed + ".tmp"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "remove stale "+tmp, err)
	}
	db, err := openSnapshotDB(ctx, buildSnapshotDSN(tmp, false))
	if err != nil {
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "create "+tmp, err)
	}
	w := &SnapshotWriter{path: trimmed, tmp: tmp, db: db}
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		w.Abort()
		return nil, appErrors.New(appErrors.CodeSnapshotFailed, "create snapshot schema", err)
	}
	meta := map[string]string{
		"schema_version": snapshotSchemaVersion,
		"endpoint":       endpoint,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			w.Abort()
			return nil, appErrors.New(appErrors.CodeSnapshotFailed, "write snapshot meta", err)
		}
	}
	return w, nil
}

// PutNodes stores records and their references in one transaction. Children
// that are not yet stored get a placeholder row that a later record fills.
func (w *SnapshotWriter) PutNodes(ctx context.Context, records []NodeRecord) (err error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return appErrors.New(appErrors.CodeSnapshotFailed, "begin snapshot transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rec := range records {
		payload, encErr := encodeAttributes(rec.Attributes)
		if encErr != nil {
			return appErrors.New(appErrors.CodeSnapshotFailed, "encode attributes of "+rec.NodeID, encErr)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (node_id, browse_name, display_name, node_class, browsed, attributes)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET
				browse_name = excluded.browse_name,
				display_name = excluded.display_name,
				node_class = excluded.node_class,
				browsed = excluded.browsed,
				attributes = excluded.attributes
		`, rec.NodeID, rec.BrowseName, rec.DisplayName, uint32(rec.NodeClass), rec.Browsed, string(payload)); err != nil {
			return appErrors.New(appErrors.CodeSnapshotFailed, "store node "+rec.NodeID, err)
		}
		for i, ref := range rec.References {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO nodes (node_id, browse_name, display_name, node_class)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(node_id) DO NOTHING
			`, ref.NodeID, ref.BrowseName, ref.DisplayName, uint32(ref.NodeClass)); err != nil {
				return appErrors.New(appErrors.CodeSnapshotFailed, "store node "+ref.NodeID, err)
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO refs (parent_id, child_id, kind, position, type_def)
				VALUES (?, ?, ?, ?, ?)
			`, rec.NodeID, ref.NodeID, int(ref.Kind), i, ref.TypeDefinition); err != nil {
				return appErrors.New(appErrors.CodeSnapshotFailed, "store reference "+rec.NodeID+" -> "+ref.NodeID, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return appErrors.New(appErrors.CodeSnapshotFailed, "commit snapshot transaction", err)
	}
	return nil
}

// Commit closes the database and atomically replaces the target file.
func (w *SnapshotWriter) Commit() error {
	if err := w.db.Close(); err != nil {
		return appErrors.New(appErrors.CodeSnapshotFailed, "close "+w.tmp, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		return appErrors.New(appErrors.CodeSnapshotFailed, "move snapshot into place", err)
	}
	return nil
}

// Abort discards the partial snapshot.
func (w *SnapshotWriter) Abort() {
	_ = w.db.Close()
	_ = os.Remove(w.tmp)
}
