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
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/vkuzmyk/mdlate/internal/store"
)

var (
	batchOutDir      string
	batchSourceLang  string
	batchTargetLang  string
	batchProvider    string
	batchModel       string
	batchAPIKey      string
	batchBaseURL     string
	batchCredentials string
	batchMaxTokens   int
	batchMaxRetries  int
	batchTimeout     time.Duration
	batchConcurrency int
	batchDBPath      string
	batchNoCache     bool
	batchGlossaryIn  string
	batchSkipValid   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <glob>",
	Short: "Translate multiple Markdown documents",
	Long: `Translate every file matching a glob pattern into an output directory,
keeping the file names. Documents run concurrently up to --concurrency;
within one document chunks stay strictly sequential so the rolling context
holds. Each document carries its own summary and glossary; the database
glossary is shared.

Example:
  mdlate batch 'docs/*.md' --out-dir docs/uk -t uk --provider ollama`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchTargetLang == "" {
			return fmt.Errorf("--target language is required")
		}

		files, err := filepath.Glob(args[0])
		if err != nil {
			return fmt.Errorf("bad glob pattern: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no files match %q", args[0])
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var db *store.Store
		path := batchDBPath
		if path == "" {
			path = viper.GetString("db")
		}
		if !batchNoCache && path != "" {
			db, err = store.New(path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
		}

		fmt.Fprintf(os.Stderr, "Translating %d file(s) with concurrency %d\n", len(files), batchConcurrency)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)
		for _, f := range files {
			f := f
			g.Go(func() error {
				opts := jobOptions{
					InputFile:      f,
					OutputFile:     filepath.Join(batchOutDir, filepath.Base(f)),
					SourceLang:     batchSourceLang,
					TargetLang:     batchTargetLang,
					Provider:       batchProvider,
					Model:          batchModel,
					APIKey:         batchAPIKey,
					BaseURL:        batchBaseURL,
					Credentials:    batchCredentials,
					MaxTokens:      batchMaxTokens,
					MaxRetries:     batchMaxRetries,
					Timeout:        batchTimeout,
					SkipValidation: batchSkipValid,
					GlossaryIn:     batchGlossaryIn,
					DB:             db,
				}
				if err := runDocument(gctx, opts); err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "", "Output directory (required)")
	batchCmd.Flags().StringVarP(&batchSourceLang, "source", "s", "auto", "Source language code")
	batchCmd.Flags().StringVarP(&batchTargetLang, "target", "t", "", "Target language code (required)")

	batchCmd.Flags().StringVar(&batchProvider, "provider", "openai", "Translation provider")
	batchCmd.Flags().StringVar(&batchModel, "model", "", "Model name (provider default used if empty)")
	batchCmd.Flags().StringVar(&batchAPIKey, "api-key", "", "Provider API key (or MDLATE_API_KEY)")
	batchCmd.Flags().StringVar(&batchBaseURL, "base-url", "", "Provider base URL override")
	batchCmd.Flags().StringVarP(&batchCredentials, "credentials", "c", "", "Path to Google Cloud credentials")

	batchCmd.Flags().IntVar(&batchMaxTokens, "max-tokens", 800, "Token budget per chunk")
	batchCmd.Flags().IntVar(&batchMaxRetries, "max-retries", 3, "Attempts per chunk")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 2*time.Minute, "Per-request timeout")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "Documents translated in parallel")
	batchCmd.Flags().BoolVar(&batchSkipValid, "skip-validation", false, "Skip language and structure checks")

	batchCmd.Flags().StringVar(&batchGlossaryIn, "glossary-in", "", "YAML glossary file to seed term renderings")
	batchCmd.Flags().StringVar(&batchDBPath, "db", "./data/mdlate.db", "Database path (glossary, chunk memory, checkpoints)")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "Disable database persistence")

	batchCmd.MarkFlagRequired("out-dir")
	batchCmd.MarkFlagRequired("target")
}
