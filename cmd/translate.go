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
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vkuzmyk/mdlate/internal/store"
)

var (
	inputFile  string
	outputFile string
	sourceLang string
	targetLang string

	provider    string
	model       string
	apiKey      string
	baseURL     string
	credentials string

	maxTokens      int
	tailRunes      int
	summaryMax     int
	maxRetries     int
	timeout        time.Duration
	skipValidation bool

	summarizerKind  string
	summarizerModel string
	summarizerURL   string

	glossaryIn  string
	glossaryOut string

	dbPath  string
	noCache bool
	resume  bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a Markdown document",
	Long: `Translate one Markdown document while preserving its structure.

The document is split into chunks along block boundaries (headings,
paragraphs, list items; code fences and table rows are never split), and
each chunk is translated with the running context of everything before it:
a rolling summary, the glossary of term renderings fixed so far, and the
tail of the previous chunk's translation.

Available providers:
  - openai      OpenAI chat API (requires API key)
  - qwen        Alibaba Qwen via DashScope (requires API key)
  - openrouter  OpenRouter (requires API key)
  - ollama      Ollama LLM (self-hosted)
  - google      Google Cloud Translation (plain MT, no context threading)

Example:
  mdlate translate -i README.md -o README.uk.md -t uk --provider ollama`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if targetLang == "" {
			return fmt.Errorf("--target language is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := jobOptions{
			InputFile:       inputFile,
			OutputFile:      outputFile,
			SourceLang:      sourceLang,
			TargetLang:      targetLang,
			Provider:        provider,
			Model:           model,
			APIKey:          apiKey,
			BaseURL:         baseURL,
			Credentials:     credentials,
			MaxTokens:       maxTokens,
			TailRunes:       tailRunes,
			SummaryMax:      summaryMax,
			MaxRetries:      maxRetries,
			Timeout:         timeout,
			SkipValidation:  skipValidation,
			Summarizer:      summarizerKind,
			SummarizerModel: summarizerModel,
			SummarizerURL:   summarizerURL,
			GlossaryIn:      glossaryIn,
			GlossaryOut:     glossaryOut,
			Resume:          resume,
		}

		path := dbPath
		if path == "" {
			path = viper.GetString("db")
		}
		if !noCache && path != "" {
			db, err := store.New(path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			opts.DB = db
		}

		return runDocument(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input Markdown file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for the translation (required)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "Target language code (required)")

	translateCmd.Flags().StringVar(&provider, "provider", "openai", "Translation provider")
	translateCmd.Flags().StringVar(&model, "model", "", "Model name (provider default used if empty)")
	translateCmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key (or MDLATE_API_KEY)")
	translateCmd.Flags().StringVar(&baseURL, "base-url", "", "Provider base URL override")
	translateCmd.Flags().StringVarP(&credentials, "credentials", "c", "", "Path to Google Cloud credentials")

	translateCmd.Flags().IntVar(&maxTokens, "max-tokens", 800, "Token budget per chunk")
	translateCmd.Flags().IntVar(&tailRunes, "tail-runes", 200, "Previous-translation tail length")
	translateCmd.Flags().IntVar(&summaryMax, "summary-max", 1200, "Rolling summary length cap")
	translateCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "Attempts per chunk")
	translateCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-request timeout")
	translateCmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "Skip language and structure checks")

	translateCmd.Flags().StringVar(&summarizerKind, "summarizer", "local", "Summary maintenance: local, ollama, or none")
	translateCmd.Flags().StringVar(&summarizerModel, "summarizer-model", "llama3.2", "Summarizer model name")
	translateCmd.Flags().StringVar(&summarizerURL, "summarizer-url", "http://localhost:11434", "Summarizer Ollama URL")

	translateCmd.Flags().StringVar(&glossaryIn, "glossary-in", "", "YAML glossary file to seed term renderings")
	translateCmd.Flags().StringVar(&glossaryOut, "glossary-out", "", "Write the run's final glossary to a YAML file")

	translateCmd.Flags().StringVar(&dbPath, "db", "./data/mdlate.db", "Database path (glossary, chunk memory, checkpoints)")
	translateCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable database persistence")
	translateCmd.Flags().BoolVar(&resume, "resume", false, "Resume an interrupted run of the same job")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
	translateCmd.MarkFlagRequired("target")
}
