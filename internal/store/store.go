// Package store is the SQLite persistence layer: the cross-run glossary,
// the chunk translation memory, and run checkpoints for resume support.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/vkuzmyk/mdlate/internal/state"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- glossary stores term renderings shared across runs of a language pair
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term)
	);

	-- chunk_memory caches finished chunk translations keyed by content hash
	CREATE TABLE IF NOT EXISTS chunk_memory (
		chunk_hash TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 0,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(chunk_hash, source_lang, target_lang, model)
	);

	-- runs tracks document translation jobs for resume support
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- run_chunks stores per-chunk results of a run
	CREATE TABLE IF NOT EXISTS run_chunks (
		run_id TEXT NOT NULL,
		chunk_idx INTEGER NOT NULL,
		translated_text TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, chunk_idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON chunk_memory(chunk_hash, source_lang, target_lang, model);
	CREATE INDEX IF NOT EXISTS idx_runs_lookup ON runs(input_file, target_lang, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- glossary ---

// SeedGlossaryTerm inserts a term unless the source term already has a
// rendering for the language pair. First write wins; it reports whether the
// row was inserted.
func (s *Store) SeedGlossaryTerm(ctx context.Context, sourceLang, targetLang string, t state.Term) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO glossary (id, source_lang, target_lang, source_term, target_term) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), sourceLang, targetLang, strings.TrimSpace(t.Source), strings.TrimSpace(t.Target))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpsertGlossaryTerm inserts or overwrites a term rendering. Only explicit
// user edits go through here; run-discovered terms use SeedGlossaryTerm so
// they cannot displace an established rendering.
func (s *Store) UpsertGlossaryTerm(ctx context.Context, sourceLang, targetLang string, t state.Term) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO glossary (id, source_lang, target_lang, source_term, target_term) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_lang, target_lang, source_term) DO UPDATE SET target_term = excluded.target_term`,
		uuid.NewString(), sourceLang, targetLang, strings.TrimSpace(t.Source), strings.TrimSpace(t.Target))
	return err
}

// DeleteGlossaryTerm removes one term. It reports whether a row existed.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM glossary WHERE source_lang = ? AND target_lang = ? AND source_term = ?`,
		sourceLang, targetLang, sourceTerm)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GlossaryTerms returns the stored terms for a language pair in insertion
// order, ready to seed a run's glossary.
func (s *Store) GlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]state.Term, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary WHERE source_lang = ? AND target_lang = ? ORDER BY created_at, source_term`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terms []state.Term
	for rows.Next() {
		var t state.Term
		if err := rows.Scan(&t.Source, &t.Target); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// GlossaryEntry is a row from the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// ListGlossary returns glossary rows, optionally filtered by language.
// Empty filter values match everything.
func (s *Store) ListGlossary(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary
		 WHERE (? = '' OR source_lang = ?) AND (? = '' OR target_lang = ?)
		 ORDER BY source_lang, target_lang, created_at`,
		sourceLang, sourceLang, targetLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- chunk memory ---

// ChunkKey derives the cache key for a chunk payload. The payload is
// NFC-normalized and trimmed first so byte-level encoding differences do not
// defeat the cache.
func ChunkKey(payload string) string {
	sum := sha256.Sum256([]byte(normalizeText(payload)))
	return hex.EncodeToString(sum[:])
}

// GetChunk looks up a cached translation for a chunk payload.
func (s *Store) GetChunk(ctx context.Context, payload, sourceLang, targetLang, model string) (string, bool, error) {
	key := ChunkKey(payload)

	var translated string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated_text FROM chunk_memory WHERE chunk_hash = ? AND source_lang = ? AND target_lang = ? AND model = ?`,
		key, sourceLang, targetLang, model).Scan(&translated)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE chunk_memory SET usage_count = usage_count + 1, last_used = ? WHERE chunk_hash = ? AND source_lang = ? AND target_lang = ? AND model = ?`,
		time.Now(), key, sourceLang, targetLang, model)
	return translated, true, err
}

// PutChunk stores a finished chunk translation, replacing any earlier entry
// for the same key.
func (s *Store) PutChunk(ctx context.Context, payload, sourceLang, targetLang, model, translated string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_memory (chunk_hash, source_lang, target_lang, model, translated_text, usage_count, last_used)
		 VALUES (?, ?, ?, ?, ?, 0, ?)
		 ON CONFLICT(chunk_hash, source_lang, target_lang, model) DO UPDATE SET translated_text = excluded.translated_text, last_used = excluded.last_used`,
		ChunkKey(payload), sourceLang, targetLang, model, translated, time.Now())
	return err
}

// MemoryEntry is a row from the chunk_memory table.
type MemoryEntry struct {
	Hash       string
	SourceLang string
	TargetLang string
	Model      string
	Translated string
	UsageCount int
	LastUsed   time.Time
}

// MemoryStats summarises chunk memory usage.
type MemoryStats struct {
	TotalEntries int
	TotalUsage   int
}

// ListChunkMemory returns all cached chunks ordered by most recently used.
func (s *Store) ListChunkMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_hash, source_lang, target_lang, model, translated_text, usage_count, last_used FROM chunk_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.Hash, &e.SourceLang, &e.TargetLang, &e.Model, &e.Translated, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns summary statistics for the chunk memory.
func (s *Store) Stats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(usage_count), 0) FROM chunk_memory`).
		Scan(&stats.TotalEntries, &stats.TotalUsage)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// DeleteChunkMemory removes one cached chunk by hash, across all language
// pairs and models.
func (s *Store) DeleteChunkMemory(ctx context.Context, hash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_memory WHERE chunk_hash = ?`, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearChunkMemory removes all cached chunks.
func (s *Store) ClearChunkMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunk_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- runs ---

// Run is a document translation job's checkpoint record.
type Run struct {
	ID         string
	InputFile  string
	OutputFile string
	SourceLang string
	TargetLang string
	Model      string
	Status     string
	CreatedAt  time.Time
}

// CreateRun records a new document run and returns its ID.
func (s *Store) CreateRun(ctx context.Context, inputFile, outputFile, sourceLang, targetLang, model string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_file, output_file, source_lang, target_lang, model) VALUES (?, ?, ?, ?, ?, ?)`,
		id, inputFile, outputFile, sourceLang, targetLang, model)
	return id, err
}

// FindIncompleteRun returns the most recent interrupted run matching the
// job parameters, if any.
func (s *Store) FindIncompleteRun(ctx context.Context, inputFile, outputFile, sourceLang, targetLang, model string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, output_file, source_lang, target_lang, model, status, created_at FROM runs
		 WHERE input_file = ? AND output_file = ? AND source_lang = ? AND target_lang = ? AND model = ? AND status IN ('running', 'failed')
		 ORDER BY created_at DESC LIMIT 1`,
		inputFile, outputFile, sourceLang, targetLang, model).
		Scan(&r.ID, &r.InputFile, &r.OutputFile, &r.SourceLang, &r.TargetLang, &r.Model, &r.Status, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RunChunks returns the finished chunks of a run as an index → text map.
func (s *Store) RunChunks(ctx context.Context, runID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_idx, translated_text FROM run_chunks WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make(map[int]string)
	for rows.Next() {
		var idx int
		var text string
		if err := rows.Scan(&idx, &text); err != nil {
			return nil, err
		}
		chunks[idx] = text
	}
	return chunks, rows.Err()
}

// CompleteRun marks a run as finished.
func (s *Store) CompleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'completed', updated_at = ? WHERE id = ?`, time.Now(), runID)
	return err
}

// FailRun marks a run as failed. Its chunks stay in place for a later
// resume attempt.
func (s *Store) FailRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'failed', updated_at = ? WHERE id = ?`, time.Now(), runID)
	return err
}

// RunCheckpoint binds a Store to one run ID so per-chunk progress can be
// recorded during orchestration.
type RunCheckpoint struct {
	s     *Store
	runID string
}

// Checkpoint returns the per-chunk progress recorder for runID.
func (s *Store) Checkpoint(runID string) *RunCheckpoint {
	return &RunCheckpoint{s: s, runID: runID}
}

// SaveChunk persists one finished chunk of the run.
func (c *RunCheckpoint) SaveChunk(ctx context.Context, index int, translated string) error {
	_, err := c.s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_chunks (run_id, chunk_idx, translated_text) VALUES (?, ?, ?)`,
		c.runID, index, translated)
	return err
}

// normalizeText trims whitespace and applies Unicode NFC normalization for
// consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
