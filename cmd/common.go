/*
Copyright © 2025 Vitalii Kuzmyk <vitalii.kuzmyk@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vkuzmyk/mdlate/internal/chunker"
	"github.com/vkuzmyk/mdlate/internal/detector"
	"github.com/vkuzmyk/mdlate/internal/document"
	"github.com/vkuzmyk/mdlate/internal/orchestrator"
	"github.com/vkuzmyk/mdlate/internal/reassembler"
	"github.com/vkuzmyk/mdlate/internal/state"
	"github.com/vkuzmyk/mdlate/internal/store"
	"github.com/vkuzmyk/mdlate/internal/summarizer"
	"github.com/vkuzmyk/mdlate/internal/terms"
	"github.com/vkuzmyk/mdlate/internal/translator"
	"github.com/vkuzmyk/mdlate/internal/validator"
)

// jobOptions is everything one document translation run needs. The
// translate and batch commands both fill one from their flags.
type jobOptions struct {
	InputFile  string
	OutputFile string
	SourceLang string
	TargetLang string

	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Credentials string

	MaxTokens      int
	TailRunes      int
	SummaryMax     int
	MaxRetries     int
	Timeout        time.Duration
	SkipValidation bool

	Summarizer      string
	SummarizerModel string
	SummarizerURL   string

	GlossaryIn  string
	GlossaryOut string

	DB     *store.Store // nil disables persistence
	Resume bool
}

// buildBackend constructs the translation backend for a provider name.
// Credentials missing from flags fall back to config / environment.
func buildBackend(opts jobOptions) (translator.Backend, translator.Config, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}

	cfg := translator.Config{
		APIKey:      apiKey,
		Model:       opts.Model,
		BaseURL:     opts.BaseURL,
		Timeout:     opts.Timeout,
		Credentials: opts.Credentials,
	}

	switch opts.Provider {
	case "openai":
		return translator.NewOpenAI(apiKey, opts.BaseURL, opts.Model), cfg, nil
	case "qwen":
		return translator.NewQwen(apiKey, opts.Model), cfg, nil
	case "openrouter":
		return translator.NewOpenRouter(apiKey, opts.BaseURL, opts.Model), cfg, nil
	case "ollama":
		return translator.NewOllama(opts.BaseURL, opts.Model), cfg, nil
	case "google":
		credentials := opts.Credentials
		if credentials == "" {
			credentials = viper.GetString("credentials")
			cfg.Credentials = credentials
		}
		return translator.NewGoogle(credentials), cfg, nil
	}
	return nil, cfg, fmt.Errorf("unknown provider: %s (expected openai, qwen, openrouter, ollama, or google)", opts.Provider)
}

func buildSummarizer(opts jobOptions) (summarizer.Summarizer, error) {
	switch opts.Summarizer {
	case "", "local":
		return summarizer.Rolling{}, nil
	case "ollama":
		return summarizer.NewOllama(opts.SummarizerModel, opts.SummarizerURL), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown summarizer: %s (expected local, ollama, or none)", opts.Summarizer)
}

// runDocument translates one Markdown file end to end: parse, chunk,
// orchestrate, reassemble, write.
func runDocument(ctx context.Context, opts jobOptions) error {
	raw, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	src := string(raw)

	sourceLang := opts.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		det := detector.New()
		if detected, ok := det.DetectISO(src); ok {
			sourceLang = strings.ToLower(detected)
			fmt.Fprintf(os.Stderr, "Detected source language: %s\n", sourceLang)
		} else {
			sourceLang = ""
		}
	}

	blocks, err := document.Parse(src)
	if err != nil {
		return err
	}

	chunks, err := chunker.Split(blocks, opts.MaxTokens)
	if err != nil {
		return err
	}
	if err := chunker.Coverage(blocks, chunks); err != nil {
		return &chunker.ChunkingError{MaxTokens: opts.MaxTokens, Reason: err.Error()}
	}
	fmt.Fprintf(os.Stderr, "Parsed %d block(s) into %d chunk(s)\n", len(blocks), len(chunks))

	st := state.New(opts.TailRunes)
	if opts.GlossaryIn != "" {
		seed, err := readGlossaryFile(opts.GlossaryIn)
		if err != nil {
			return err
		}
		st.Seed(seed)
	}
	if opts.DB != nil {
		stored, err := opts.DB.GlossaryTerms(ctx, sourceLang, opts.TargetLang)
		if err != nil {
			return fmt.Errorf("failed to load glossary: %w", err)
		}
		st.Seed(stored)
	}

	backend, tcfg, err := buildBackend(opts)
	if err != nil {
		return err
	}
	if err := backend.IsAvailable(ctx); err != nil {
		return fmt.Errorf("provider %s not usable: %w", backend.Name(), err)
	}
	sum, err := buildSummarizer(opts)
	if err != nil {
		return err
	}

	orch := orchestrator.New(backend, tcfg, orchestrator.Config{
		Timeout:         opts.Timeout,
		MaxAttempts:     opts.MaxRetries,
		SummaryMaxRunes: opts.SummaryMax,
	})
	orch.Summarizer = sum
	orch.Extractor = terms.Heuristic{}
	orch.Progress = os.Stderr
	if !opts.SkipValidation {
		orch.Validator = validator.New()
	}

	var runID string
	if opts.DB != nil {
		orch.Memory = opts.DB

		if opts.Resume {
			prev, err := opts.DB.FindIncompleteRun(ctx, opts.InputFile, opts.OutputFile, sourceLang, opts.TargetLang, opts.Model)
			if err != nil {
				return fmt.Errorf("failed to look up previous run: %w", err)
			}
			if prev != nil {
				completed, err := opts.DB.RunChunks(ctx, prev.ID)
				if err != nil {
					return fmt.Errorf("failed to load previous run chunks: %w", err)
				}
				runID = prev.ID
				orch.Completed = completed
				fmt.Fprintf(os.Stderr, "Resuming run %s (%d chunk(s) already done)\n", runID, len(completed))
			}
		}
		if runID == "" {
			runID, err = opts.DB.CreateRun(ctx, opts.InputFile, opts.OutputFile, sourceLang, opts.TargetLang, opts.Model)
			if err != nil {
				return fmt.Errorf("failed to create run: %w", err)
			}
		}
		orch.Checkpoint = opts.DB.Checkpoint(runID)
	}

	results, err := orch.Run(ctx, chunks, st, sourceLang, opts.TargetLang)
	if err != nil {
		if opts.DB != nil && runID != "" {
			_ = opts.DB.FailRun(ctx, runID)
		}
		return err
	}

	output, err := reassembler.Reassemble(results, chunks)
	if err != nil {
		if opts.DB != nil && runID != "" {
			_ = opts.DB.FailRun(ctx, runID)
		}
		return err
	}

	if !opts.SkipValidation {
		if err := reassembler.Verify(blocks, output); err != nil {
			if opts.DB != nil && runID != "" {
				_ = opts.DB.FailRun(ctx, runID)
			}
			return err
		}
	}

	if err := writeFileAtomic(opts.OutputFile, []byte(output)); err != nil {
		return err
	}

	if opts.DB != nil {
		_ = opts.DB.CompleteRun(ctx, runID)
		for _, t := range st.Glossary().Terms() {
			_, _ = opts.DB.SeedGlossaryTerm(ctx, sourceLang, opts.TargetLang, t)
		}
	}
	if opts.GlossaryOut != "" {
		if err := writeGlossaryFile(opts.GlossaryOut, st.Glossary().Terms()); err != nil {
			return err
		}
	}

	fmt.Printf("Translated %s -> %s (%d chunk(s), %d glossary term(s))\n",
		opts.InputFile, opts.OutputFile, len(chunks), st.Glossary().Len())
	return nil
}

// writeFileAtomic writes data via a temp file in the target directory plus
// rename, so a crash never leaves a half-written output.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return os.Chmod(path, 0644)
}

// glossaryFile is the YAML layout of a glossary seed/export file.
type glossaryFile struct {
	Terms []state.Term `yaml:"terms"`
}

func readGlossaryFile(path string) ([]state.Term, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}
	var gf glossaryFile
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse glossary file: %w", err)
	}
	return gf.Terms, nil
}

func writeGlossaryFile(path string, ts []state.Term) error {
	raw, err := yaml.Marshal(glossaryFile{Terms: ts})
	if err != nil {
		return fmt.Errorf("failed to encode glossary: %w", err)
	}
	return writeFileAtomic(path, raw)
}
