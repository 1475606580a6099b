// Package orchestrator drives a document translation run: it walks the
// chunk sequence in order, threads the rolling context (summary, glossary,
// previous tail) through each backend call, retries transient failures, and
// commits state only after a chunk succeeds. Chunks are translated strictly
// sequentially because chunk N's context depends on chunk N-1's result.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vkuzmyk/mdlate/internal/chunker"
	"github.com/vkuzmyk/mdlate/internal/placeholder"
	"github.com/vkuzmyk/mdlate/internal/state"
	"github.com/vkuzmyk/mdlate/internal/summarizer"
	"github.com/vkuzmyk/mdlate/internal/terms"
	"github.com/vkuzmyk/mdlate/internal/translator"
	"github.com/vkuzmyk/mdlate/internal/validator"
)

// DefaultMaxAttempts bounds retries per chunk, the first try included.
const DefaultMaxAttempts = 3

// DefaultRetryDelay is the base backoff; it doubles with each retry.
const DefaultRetryDelay = 2 * time.Second

// Config tunes one run. Zero values select the defaults.
type Config struct {
	// Timeout bounds a single backend call, not the whole run.
	Timeout time.Duration
	// MaxAttempts is the per-chunk attempt ceiling.
	MaxAttempts int
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration
	// SummaryMaxRunes caps the rolling summary.
	SummaryMaxRunes int
}

// Result is one chunk's committed translation.
type Result struct {
	// SequenceIndex matches the chunk's Index; results are produced in
	// ascending order with no gaps.
	SequenceIndex  int
	TranslatedText string
	ObservedTerms  []state.Term
	// Attempts is how many backend calls the chunk took; 0 when the chunk
	// was served without a backend call (passthrough, memory, resume).
	Attempts   int
	FromMemory bool
}

// TranslationError reports a chunk whose attempts were exhausted or whose
// failure was not retryable. The run stops at the first failed chunk.
type TranslationError struct {
	ChunkIndex int
	Attempts   int
	Err        error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempt(s): %v", e.ChunkIndex, e.Attempts, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Memory caches chunk translations across runs. Lookups and stores are
// best-effort; a failing Memory never fails a run.
type Memory interface {
	GetChunk(ctx context.Context, payload, sourceLang, targetLang, model string) (string, bool, error)
	PutChunk(ctx context.Context, payload, sourceLang, targetLang, model, translated string) error
}

// Checkpoint records per-chunk completion so an interrupted run can resume.
type Checkpoint interface {
	SaveChunk(ctx context.Context, index int, translated string) error
}

// Orchestrator runs chunks through a backend. The exported fields are
// optional collaborators; leave them nil to disable the concern.
type Orchestrator struct {
	backend translator.Backend
	tcfg    translator.Config
	cfg     Config

	// Summarizer refreshes the rolling summary after each chunk. A
	// summarizer failure keeps the previous summary and the run continues.
	Summarizer summarizer.Summarizer
	// Extractor reports term pairs from each finished chunk.
	Extractor terms.Extractor
	// Validator checks each translation is in the target language. Nil
	// skips validation.
	Validator *validator.Validator
	// Memory is the cross-run translation cache.
	Memory Memory
	// Checkpoint persists per-chunk completion.
	Checkpoint Checkpoint
	// Completed holds translations recovered from an earlier interrupted
	// run, keyed by chunk index. Those chunks are not re-translated.
	Completed map[int]string
	// Progress receives one line per finished chunk. Nil discards.
	Progress io.Writer
}

func New(backend translator.Backend, tcfg translator.Config, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.SummaryMaxRunes <= 0 {
		cfg.SummaryMaxRunes = summarizer.DefaultMaxRunes
	}
	return &Orchestrator{backend: backend, tcfg: tcfg, cfg: cfg}
}

// Run translates chunks in sequence order, mutating st as it goes. It
// returns one Result per chunk, index-aligned. The first chunk failure or
// context cancellation aborts the run; results for chunks finished before
// the abort are discarded with the error.
func (o *Orchestrator) Run(ctx context.Context, chunks []chunker.Chunk, st *state.State, sourceLang, targetLang string) ([]Result, error) {
	progress := o.Progress
	if progress == nil {
		progress = io.Discard
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := o.runChunk(ctx, c, st, sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)

		switch {
		case res.FromMemory:
			fmt.Fprintf(progress, "chunk %d/%d: reused\n", c.Index+1, len(chunks))
		case res.Attempts == 0:
			fmt.Fprintf(progress, "chunk %d/%d: passed through\n", c.Index+1, len(chunks))
		default:
			fmt.Fprintf(progress, "chunk %d/%d: translated (%d attempt(s), %d terms)\n",
				c.Index+1, len(chunks), res.Attempts, len(res.ObservedTerms))
		}
	}
	return results, nil
}

func (o *Orchestrator) runChunk(ctx context.Context, c chunker.Chunk, st *state.State, sourceLang, targetLang string) (*Result, error) {
	payload := c.Payload()

	// Nothing translatable: the chunk is separators only.
	if strings.TrimSpace(payload) == "" {
		return &Result{SequenceIndex: c.Index, TranslatedText: payload}, nil
	}

	protected, markers := placeholder.Protect(payload)

	// All content is protected markup (a lone code fence, a raw HTML
	// block). The backend has nothing to do; the source text is the output.
	if placeholder.OnlyMarkers(protected) {
		return &Result{SequenceIndex: c.Index, TranslatedText: payload}, nil
	}

	if prev, ok := o.Completed[c.Index]; ok {
		return o.commit(ctx, c, st, payload, prev, nil, 0, true), nil
	}

	if o.Memory != nil {
		cached, hit, err := o.Memory.GetChunk(ctx, payload, sourceLang, targetLang, o.tcfg.Model)
		if err == nil && hit {
			return o.commit(ctx, c, st, payload, cached, nil, 0, true), nil
		}
	}

	translated, observed, attempts, err := o.translate(ctx, protected, markers, st, sourceLang, targetLang)
	if err != nil {
		// Run-level cancellation is reported as-is; everything else is a
		// chunk failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TranslationError{ChunkIndex: c.Index, Attempts: attempts, Err: err}
	}

	res := o.commit(ctx, c, st, payload, translated, observed, attempts, false)
	if o.Memory != nil {
		// Best effort; a full or broken cache must not fail the run.
		_ = o.Memory.PutChunk(ctx, payload, sourceLang, targetLang, o.tcfg.Model, translated)
	}
	return res, nil
}

// translate calls the backend until one attempt yields an acceptable
// translation. Transient backend failures, lost placeholder markers, and
// wrong-language output are retried; permanent failures are not. On the
// final attempt a wrong-language result is accepted rather than failing the
// run, since detection itself is heuristic.
func (o *Orchestrator) translate(ctx context.Context, protected string, markers []string, st *state.State, sourceLang, targetLang string) (string, []state.Term, int, error) {
	req := translator.Request{
		Text:         protected,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		Summary:      st.Summary(),
		PreviousTail: st.PreviousTail(),
		Glossary:     st.Glossary().Terms(),
	}

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, o.cfg.RetryDelay<<(attempt-2)); err != nil {
				return "", nil, attempt - 1, err
			}
		}

		result, err := o.callBackend(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", nil, attempt, ctx.Err()
			}
			if !translator.IsTransient(err) {
				return "", nil, attempt, err
			}
			continue
		}

		if missing := placeholder.Validate(result.TranslatedText, markers); len(missing) > 0 {
			lastErr = fmt.Errorf("translation dropped %d protected segment(s)", len(missing))
			continue
		}
		restored := placeholder.Restore(result.TranslatedText, markers)

		if o.Validator != nil {
			if ok, verr := o.Validator.IsValid(restored, targetLang); !ok {
				if attempt < o.cfg.MaxAttempts {
					lastErr = fmt.Errorf("language check failed: %v", verr)
					continue
				}
			}
		}

		return restored, result.ObservedTerms, attempt, nil
	}
	return "", nil, o.cfg.MaxAttempts, lastErr
}

func (o *Orchestrator) callBackend(ctx context.Context, req translator.Request) (*translator.Result, error) {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	return o.backend.TranslateChunk(ctx, o.tcfg, req)
}

// commit folds a finished chunk into the rolling state and returns its
// Result. Term extraction and summary refresh failures degrade context
// quality but never fail the chunk.
func (o *Orchestrator) commit(ctx context.Context, c chunker.Chunk, st *state.State, payload, translated string, observed []state.Term, attempts int, fromMemory bool) *Result {
	if o.Extractor != nil {
		if extra, err := o.Extractor.Extract(ctx, payload, translated); err == nil {
			observed = append(observed, extra...)
		}
	}
	st.Apply(translated, observed)

	if o.Summarizer != nil {
		if updated, err := o.Summarizer.Summarize(ctx, st.Summary(), translated, o.cfg.SummaryMaxRunes); err == nil {
			st.SetSummary(updated)
		}
	}

	if o.Checkpoint != nil {
		_ = o.Checkpoint.SaveChunk(ctx, c.Index, translated)
	}

	return &Result{
		SequenceIndex:  c.Index,
		TranslatedText: translated,
		ObservedTerms:  observed,
		Attempts:       attempts,
		FromMemory:     fromMemory,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
