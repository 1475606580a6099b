package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vkuzmyk/mdlate/internal/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_GlossarySeedFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.SeedGlossaryTerm(ctx, "en", "uk", state.Term{Source: "Kyiv", Target: "Київ"})
	if err != nil || !ok {
		t.Fatalf("first seed: ok=%v err=%v", ok, err)
	}
	ok, err = s.SeedGlossaryTerm(ctx, "en", "uk", state.Term{Source: "Kyiv", Target: "Киев"})
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if ok {
		t.Error("second seed must be ignored")
	}

	terms, err := s.GlossaryTerms(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("GlossaryTerms failed: %v", err)
	}
	if len(terms) != 1 || terms[0].Target != "Київ" {
		t.Errorf("got %v, want the first rendering kept", terms)
	}
}

func TestStore_GlossaryUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SeedGlossaryTerm(ctx, "en", "uk", state.Term{Source: "cache", Target: "кеш"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := s.UpsertGlossaryTerm(ctx, "en", "uk", state.Term{Source: "cache", Target: "кеш-пам'ять"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	terms, err := s.GlossaryTerms(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("GlossaryTerms failed: %v", err)
	}
	if len(terms) != 1 || terms[0].Target != "кеш-пам'ять" {
		t.Errorf("got %v, want the upserted rendering", terms)
	}
}

func TestStore_GlossaryLanguagePairsIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SeedGlossaryTerm(ctx, "en", "uk", state.Term{Source: "tree", Target: "дерево"})
	s.SeedGlossaryTerm(ctx, "en", "de", state.Term{Source: "tree", Target: "Baum"})

	uk, err := s.GlossaryTerms(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("GlossaryTerms failed: %v", err)
	}
	if len(uk) != 1 || uk[0].Target != "дерево" {
		t.Errorf("en-uk terms = %v", uk)
	}

	all, err := s.ListGlossary(ctx, "", "")
	if err != nil {
		t.Fatalf("ListGlossary failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d entries, want 2", len(all))
	}
}

func TestStore_GlossaryDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SeedGlossaryTerm(ctx, "en", "uk", state.Term{Source: "node", Target: "вузол"})

	deleted, err := s.DeleteGlossaryTerm(ctx, "en", "uk", "node")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = s.DeleteGlossaryTerm(ctx, "en", "uk", "node")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if deleted {
		t.Error("second delete should report no row")
	}
}

func TestStore_ChunkMemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := "A paragraph that was translated."

	if _, hit, err := s.GetChunk(ctx, payload, "en", "uk", "gpt-4o-mini"); err != nil || hit {
		t.Fatalf("unexpected hit before put: hit=%v err=%v", hit, err)
	}

	if err := s.PutChunk(ctx, payload, "en", "uk", "gpt-4o-mini", "Перекладений абзац."); err != nil {
		t.Fatalf("PutChunk failed: %v", err)
	}

	got, hit, err := s.GetChunk(ctx, payload, "en", "uk", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	if !hit || got != "Перекладений абзац." {
		t.Errorf("got %q, hit=%v", got, hit)
	}

	// A different model is a different cache entry.
	if _, hit, _ := s.GetChunk(ctx, payload, "en", "uk", "other-model"); hit {
		t.Error("unexpected hit for another model")
	}
}

func TestStore_ChunkKeyNormalization(t *testing.T) {
	if ChunkKey("  text  ") != ChunkKey("text") {
		t.Error("surrounding whitespace must not change the key")
	}
	// NFC vs NFD spellings of the same text hash identically.
	if ChunkKey("caf\u00e9") != ChunkKey("cafe\u0301") {
		t.Error("Unicode normalization forms must not change the key")
	}
	if ChunkKey("one") == ChunkKey("two") {
		t.Error("different payloads must differ")
	}
}

func TestStore_ChunkMemoryUsageCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutChunk(ctx, "p", "en", "uk", "m", "t")
	s.GetChunk(ctx, "p", "en", "uk", "m")
	s.GetChunk(ctx, "p", "en", "uk", "m")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 1 || stats.TotalUsage != 2 {
		t.Errorf("stats = %+v, want 1 entry used twice", stats)
	}
}

func TestStore_ClearChunkMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.PutChunk(ctx, "p1", "en", "uk", "m", "t1")
	s.PutChunk(ctx, "p2", "en", "uk", "m", "t2")

	n, err := s.ClearChunkMemory(ctx)
	if err != nil {
		t.Fatalf("ClearChunkMemory failed: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d, want 2", n)
	}

	entries, err := s.ListChunkMemory(ctx)
	if err != nil {
		t.Fatalf("ListChunkMemory failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries after clear", len(entries))
	}
}

func TestStore_RunCheckpointLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "in.md", "out.md", "en", "uk", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	cp := s.Checkpoint(runID)
	cp.SaveChunk(ctx, 0, "chunk zero")
	cp.SaveChunk(ctx, 1, "chunk one")

	// An interrupted run is found again with its chunks.
	prev, err := s.FindIncompleteRun(ctx, "in.md", "out.md", "en", "uk", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("FindIncompleteRun failed: %v", err)
	}
	if prev == nil || prev.ID != runID {
		t.Fatalf("got %+v, want run %s", prev, runID)
	}

	chunks, err := s.RunChunks(ctx, runID)
	if err != nil {
		t.Fatalf("RunChunks failed: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "chunk zero" || chunks[1] != "chunk one" {
		t.Errorf("chunks = %v", chunks)
	}

	// A completed run no longer resumes.
	if err := s.CompleteRun(ctx, runID); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	prev, err = s.FindIncompleteRun(ctx, "in.md", "out.md", "en", "uk", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("FindIncompleteRun failed: %v", err)
	}
	if prev != nil {
		t.Errorf("completed run still offered for resume: %+v", prev)
	}
}

func TestStore_FailedRunResumes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "in.md", "out.md", "en", "uk", "m")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := s.FailRun(ctx, runID); err != nil {
		t.Fatalf("FailRun failed: %v", err)
	}

	prev, err := s.FindIncompleteRun(ctx, "in.md", "out.md", "en", "uk", "m")
	if err != nil {
		t.Fatalf("FindIncompleteRun failed: %v", err)
	}
	if prev == nil || prev.ID != runID {
		t.Errorf("failed run not offered for resume: %+v", prev)
	}
}

func TestNormalizeText(t *testing.T) {
	if got := normalizeText("  hello  "); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := normalizeText("cafe\u0301"); got != "caf\u00e9" {
		t.Errorf("got %q, want NFC form", got)
	}
}
