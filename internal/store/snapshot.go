package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var snapshotExtensions = []string{".db", ".sqlite", ".sqlite3"}

var snapshotSchema = []string{
	`CREATE TABLE documents (
		doc_id TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		content TEXT NOT NULL
	);`,
	`CREATE TABLE snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
}

func validExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range snapshotExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Store) load() error {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.obs.Log().Info().Str("path", s.path).Msg("no snapshot found, starting with an empty store")
		return nil
	} else if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	docs, meta, err := readSnapshot(context.Background(), s.path)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if s.dim == 0 {
			s.dim = len(doc.Embedding)
		}
		if len(doc.Embedding) != s.dim {
			return fmt.Errorf("%w: document %s has %d dimensions, expected %d", ErrBadSchema, doc.ID, len(doc.Embedding), s.dim)
		}
		if i, ok := s.index[doc.ID]; ok {
			s.docs[i] = doc
			continue
		}
		s.index[doc.ID] = len(s.docs)
		s.docs = append(s.docs, doc)
	}

	if model := meta["embedding_model"]; model != "" && s.model != "" && model != s.model {
		s.obs.Log().Warn().
			Str("snapshot_model", model).
			Str("configured_model", s.model).
			Msg("snapshot was built with a different embedding model; similarity results may be meaningless")
	}
	s.obs.Log().Info().Str("path", s.path).Int("documents", len(s.docs)).Msg("snapshot loaded")
	return nil
}

func readSnapshot(ctx context.Context, path string) ([]Document, map[string]string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrBadSchema, path, err)
	}
	defer db.Close()

	if err := checkSchema(ctx, db); err != nil {
		return nil, nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT doc_id, embedding, content FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id      string
			blob    []byte
			content string
		)
		if err := rows.Scan(&id, &blob, &content); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: document %s: %v", ErrBadSchema, id, err)
		}
		docs = append(docs, Document{ID: id, Embedding: vec, Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}

	return docs, readMeta(ctx, db), nil
}

// checkSchema requires table documents with key column doc_id and the
// embedding and content columns.
func checkSchema(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(documents)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("%w: %v", ErrBadSchema, err)
		}
		cols[name] = pk > 0
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSchema, err)
	}

	if len(cols) == 0 {
		return fmt.Errorf("%w: missing table documents", ErrBadSchema)
	}
	if isKey, ok := cols["doc_id"]; !ok || !isKey {
		return fmt.Errorf("%w: documents must be keyed by doc_id", ErrBadSchema)
	}
	for _, name := range []string{"embedding", "content"} {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%w: missing column %s", ErrBadSchema, name)
		}
	}
	return nil
}

// readMeta tolerates a missing snapshot_meta table.
func readMeta(ctx context.Context, db *sql.DB) map[string]string {
	meta := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM snapshot_meta`)
	if err != nil {
		return meta
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err == nil {
			meta[k] = v
		}
	}
	return meta
}

// Save writes the table to the snapshot path. The snapshot is built in a
// temporary file next to the target and renamed over it.
func (s *Store) Save() error {
	if s.path == "" {
		return ErrNoPath
	}

	s.mu.RLock()
	docs := make([]Document, len(s.docs))
	copy(docs, s.docs)
	dim := s.dim
	s.mu.RUnlock()

	meta := map[string]string{
		"dimension": strconv.Itoa(dim),
		"saved_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if s.model != "" {
		meta["embedding_model"] = s.model
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*"+filepath.Ext(s.path))
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := writeSnapshot(context.Background(), tmpPath, docs, meta); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.obs.Log().Info().Str("path", s.path).Int("documents", len(docs)).Msg("snapshot saved")
	return nil
}

func writeSnapshot(ctx context.Context, path string, docs []Document, meta map[string]string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, query := range snapshotSchema {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to init snapshot schema: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (doc_id, embedding, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx, doc.ID, encodeEmbedding(doc.Embedding), doc.Content); err != nil {
			return fmt.Errorf("failed to write document %s: %w", doc.ID, err)
		}
	}

	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write snapshot metadata: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return db.Close()
}
