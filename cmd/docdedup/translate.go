package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/docdedup"
	"github.com/ZaguanLabs/docdedup/cache"
	"github.com/ZaguanLabs/docdedup/processor"
	"github.com/ZaguanLabs/docdedup/provider"
)

// requestFlags are shared by translate, key and lookup. Everything here that
// changes the translated output is part of the key.
type requestFlags struct {
	text     string
	context  string
	exclude  string
	style    string
	glossary map[string]string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.text, "text", "", "Translate this text instead of a file")
	cmd.Flags().String("to", "", "Target language code (e.g., zh, es_ES)")
	cmd.Flags().String("from", "", "Source language code (default: en)")
	cmd.Flags().String("service", "", "Translation service, e.g. openai:gpt-4o-mini or mock")
	cmd.Flags().String("model", "", "Override the service's model")
	cmd.Flags().StringVar(&f.context, "context", "", "Describe the document to the translator (e.g., 'Quarterly financial report')")
	cmd.Flags().StringVar(&f.exclude, "exclude", "", "Comma-separated terms to never translate")
	cmd.Flags().StringVar(&f.style, "style", "", "Register: formal, neutral, casual, technical (default: neutral)")
	cmd.Flags().StringToStringVar(&f.glossary, "glossary", nil, "Preferred translations, e.g. board=junta,share=acción")
}

// input resolves the document from args: a file path, "-" for stdin text,
// or --text.
func (f *requestFlags) input(cmd *cobra.Command, args []string) (docdedup.Mode, string, error) {
	switch {
	case f.text != "" && len(args) > 0:
		return "", "", errors.New("pass either a file or --text, not both")
	case f.text != "":
		return docdedup.ModeText, f.text, nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return docdedup.ModeText, string(data), nil
	case len(args) == 1:
		return docdedup.ModeFile, args[0], nil
	default:
		return "", "", errors.New("nothing to translate: pass a file, - for stdin, or --text")
	}
}

// newJob builds the document job and the request for args. p may be nil
// when the job is only used to derive keys.
func (f *requestFlags) newJob(cmd *cobra.Command, a *app, args []string, p docdedup.AIProvider, extra ...docdedup.TranslatorOption) (*docdedup.DocumentJob, docdedup.Request, error) {
	mode, input, err := f.input(cmd, args)
	if err != nil {
		return nil, docdedup.Request{}, err
	}

	style, err := docdedup.ParseStyle(f.style)
	if err != nil {
		return nil, docdedup.Request{}, err
	}

	opts := []docdedup.TranslatorOption{
		docdedup.WithServiceID(a.cfg.ServiceID()),
		docdedup.WithStyle(style),
		docdedup.WithProcessor(processor.NewTextProcessor()),
		docdedup.WithProcessor(processor.NewHTMLProcessor()),
	}
	if f.context != "" {
		opts = append(opts, docdedup.WithContext(f.context))
	}
	if terms := splitTerms(f.exclude); len(terms) > 0 {
		opts = append(opts, docdedup.WithExcludedTerms(terms))
	}
	if len(f.glossary) > 0 {
		opts = append(opts, docdedup.WithGlossary(f.glossary))
	}
	opts = append(opts, extra...)

	job := docdedup.NewDocumentJob(docdedup.NewSegmentTranslator(p, opts...), a.cfg.OutputDir, docdedup.WithJobLogger(a.log))
	return job, job.NewRequest(mode, input, a.cfg.SourceLang, a.cfg.TargetLang), nil
}

func newTranslateCmd(setup setupFunc) *cobra.Command {
	var (
		flags      requestFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "translate [file|-]",
		Short: "Translate a document, reusing an earlier output when one exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			if err := a.cfg.RequireTranslation(); err != nil {
				return err
			}

			ctx := cmd.Context()
			segCache, closeFn, err := a.newSegmentCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			job, req, err := flags.newJob(cmd, a, args, a.newProvider(),
				docdedup.WithSegmentCache(segCache),
				docdedup.WithBatchSize(a.cfg.BatchSize),
				docdedup.WithConcurrency(a.cfg.Concurrency),
			)
			if err != nil {
				return err
			}

			dedup := docdedup.NewDeduplicator(a.store, docdedup.WithLogger(a.log))
			res, err := dedup.Translate(ctx, req, job)
			if res != nil {
				if printErr := printResult(a.stdout, res, jsonOutput); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return fmt.Errorf("translation failed: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().String("redis-url", "", "Redis URL for the shared segment cache")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	return cmd
}

func newKeyCmd(setup setupFunc) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "key [file|-]",
		Short: "Print the cache key for a request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			_, req, err := flags.newJob(cmd, a, args, nil)
			if err != nil {
				return err
			}
			key, err := docdedup.DeriveKey(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, key)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// newProvider assembles the provider stack from config.
func (a *app) newProvider() docdedup.AIProvider {
	var p docdedup.AIProvider
	switch a.cfg.ProviderName() {
	case "mock":
		p = provider.NewMockProvider()
	default:
		p = provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:  a.cfg.APIKey,
			Model:   a.cfg.ModelName(),
			BaseURL: a.cfg.BaseURL,
		})
	}

	if a.cfg.RequestsPerMinute > 0 {
		p = docdedup.NewRateLimitedProvider(p, docdedup.RateLimitConfig{RequestsPerMinute: a.cfg.RequestsPerMinute})
	}

	retryCfg := docdedup.DefaultRetryConfig()
	retryCfg.MaxRetries = uint(a.cfg.MaxRetries)
	retryCfg.OnRetry = func(attempt uint, err error) {
		a.log.WithError(err).WithField("attempt", attempt+1).Warn("provider call failed, retrying")
	}
	return docdedup.NewRetryableProvider(p, retryCfg)
}

// newSegmentCache returns the Redis cache when one is configured, otherwise
// an in-memory cache. The returned func releases it.
func (a *app) newSegmentCache(ctx context.Context) (docdedup.SegmentCache, func(), error) {
	if a.cfg.RedisURL == "" {
		return cache.NewInMemoryCache(a.cfg.SegmentCacheTTL), func() {}, nil
	}

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		URL:    a.cfg.RedisURL,
		TTL:    a.cfg.SegmentCacheTTL,
		Logger: a.log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rc, func() { rc.Close() }, nil
}

func printResult(w io.Writer, res *docdedup.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Key        string `json:"key"`
			OutputPath string `json:"output_path"`
			Cached     bool   `json:"cached"`
		}{res.Key.String(), res.OutputPath, res.Cached})
	}

	status := "translated"
	if res.Cached {
		status = "cached"
	}
	_, err := fmt.Fprintf(w, "%s\t%s\n", status, res.OutputPath)
	return err
}

func splitTerms(s string) []string {
	var terms []string
	for _, term := range strings.Split(s, ",") {
		if term = strings.TrimSpace(term); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
