package translator

import (
	"context"
	"fmt"
	"html"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleBackend uses Cloud Translation. It is plain machine translation:
// summary, glossary, and previous-tail context cannot be threaded into the
// request, so terminology consistency relies entirely on the glossary seed
// being applied by the term extractor afterwards. Suited to short documents
// where that tradeoff is acceptable.
type GoogleBackend struct {
	credentials string
}

func NewGoogle(credentials string) *GoogleBackend {
	return &GoogleBackend{credentials: credentials}
}

func (s *GoogleBackend) Name() string { return "google" }

func (s *GoogleBackend) TranslateChunk(ctx context.Context, cfg Config, req Request) (*Result, error) {
	credentials := s.credentials
	if credentials == "" {
		credentials = cfg.Credentials
	}

	targetTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("invalid target language: %w", err))
	}

	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, permanentError(s.Name(), fmt.Errorf("create client: %w", err))
	}
	defer client.Close()

	var translations []translate.Translation
	if req.SourceLang == "" || req.SourceLang == "auto" {
		translations, err = client.Translate(ctx, []string{req.Text}, targetTag, nil)
	} else {
		sourceTag, perr := language.Parse(req.SourceLang)
		if perr != nil {
			return nil, permanentError(s.Name(), fmt.Errorf("invalid source language: %w", perr))
		}
		translations, err = client.Translate(ctx, []string{req.Text}, targetTag, &translate.Options{
			Source: sourceTag,
		})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(s.Name(), err)
		}
		return nil, permanentError(s.Name(), fmt.Errorf("translation failed: %w", err))
	}
	if len(translations) == 0 {
		return nil, permanentError(s.Name(), fmt.Errorf("no translation returned"))
	}

	// The API HTML-escapes its output.
	return &Result{TranslatedText: html.UnescapeString(translations[0].Text)}, nil
}

func (s *GoogleBackend) IsAvailable(ctx context.Context) error { return nil }
