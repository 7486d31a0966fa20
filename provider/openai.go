package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/docdedup"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements AIProvider using OpenAI's API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string  // OpenAI API key (uses OPENAI_API_KEY env var if empty)
	Model       string  // Model to use (default: DefaultOpenAIModel)
	Temperature float32 // Temperature for generation (default: 0.3)
	BaseURL     string  // Custom base URL (optional)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}
}

// ServiceID identifies this provider configuration in cache keys.
func (p *OpenAIProvider) ServiceID() string {
	return "openai:" + p.model
}

// Translate translates a batch of texts using OpenAI.
func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	systemPrompt := p.buildSystemPrompt(req)
	userMessage := p.buildUserMessage(req)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &docdedup.ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &docdedup.ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	translations, err := p.parseResponse(resp.Choices[0].Message.Content, len(req.Texts))
	if err != nil {
		return nil, err
	}

	return translations, nil
}

// buildSystemPrompt describes the job: a batch of consecutive passages cut
// from one long document, to be translated as parts of a whole.
func (p *OpenAIProvider) buildSystemPrompt(req TranslateRequest) string {
	target := docdedup.GetLanguageName(req.TargetLang)
	source := "English"
	if req.SourceLang != "" {
		source = docdedup.GetLanguageName(req.SourceLang)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are translating a long document from %s into %s, a few passages at a time.\n", source, target)
	if req.Context != "" {
		fmt.Fprintf(&b, "The document is: %s.\n", req.Context)
	}
	fmt.Fprintf(&b, "Register: %s\n", docdedup.GetStyleDescription(req.Style))
	if hint := docdedup.GetLocaleClarification(req.TargetLang); hint != "" {
		fmt.Fprintf(&b, "Locale: %s\n", hint)
	}

	b.WriteString(`
The input is {"passages":[{"id":0,"text":"...","location":"..."}]}.
- "location" says where the passage sits in the document, such as "paragraph 12 of 80" or "in <h2>". Use it to keep headings short and to carry terminology, names and tone consistently from one passage to the next. Never copy it into the output.
- Translate each passage on its own. Do not merge, split, reorder or summarize passages.
- Keep markup, code, URLs, placeholders ({name}, %s, $1) and meaningful whitespace exactly as they are.
- Prefer natural phrasing over literal translation.
`)

	if len(req.Glossary) > 0 {
		sources := make([]string, 0, len(req.Glossary))
		for src := range req.Glossary {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		b.WriteString("\nGlossary, use these translations throughout the document:\n")
		for _, src := range sources {
			fmt.Fprintf(&b, "- %q => %q\n", src, req.Glossary[src])
		}
	}

	if len(req.ExcludedTerms) > 0 {
		b.WriteString("\nLeave these terms untranslated:\n")
		for _, term := range req.ExcludedTerms {
			fmt.Fprintf(&b, "- %s\n", term)
		}
	}

	b.WriteString(`
Reply with a JSON object {"passages":[{"id":0,"text":"..."}]} holding one entry per input id. No Markdown fences.`)

	return b.String()
}

// passage is one unit of a batch, on the wire in both directions.
type passage struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
}

type passageBatch struct {
	Passages []passage `json:"passages"`
}

func (p *OpenAIProvider) buildUserMessage(req TranslateRequest) string {
	batch := passageBatch{Passages: make([]passage, len(req.Texts))}
	for i, text := range req.Texts {
		batch.Passages[i] = passage{ID: i, Text: text}
		if i < len(req.TextContexts) {
			batch.Passages[i].Location = req.TextContexts[i]
		}
	}

	data, _ := json.Marshal(batch)
	return string(data)
}

// parseResponse maps the reply back onto input order by passage id. A bare
// {"translations": [...]} array is accepted from models that ignore the
// requested shape.
func (p *OpenAIProvider) parseResponse(content string, expectedCount int) ([]string, error) {
	content = strings.TrimSpace(content)

	var batch passageBatch
	if err := json.Unmarshal([]byte(content), &batch); err == nil && len(batch.Passages) > 0 {
		return orderPassages(batch.Passages, expectedCount)
	}

	var flat struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(content), &flat); err == nil && flat.Translations != nil {
		if len(flat.Translations) != expectedCount {
			return nil, &docdedup.CountMismatchError{Expected: expectedCount, Got: len(flat.Translations)}
		}
		return flat.Translations, nil
	}

	return nil, &docdedup.ProviderError{
		Message:   "invalid response format from OpenAI",
		Retryable: false,
	}
}

func orderPassages(passages []passage, expectedCount int) ([]string, error) {
	if len(passages) != expectedCount {
		return nil, &docdedup.CountMismatchError{Expected: expectedCount, Got: len(passages)}
	}

	result := make([]string, expectedCount)
	filled := make([]bool, expectedCount)
	for _, ps := range passages {
		if ps.ID < 0 || ps.ID >= expectedCount || filled[ps.ID] {
			return nil, &docdedup.ProviderError{
				Message:   fmt.Sprintf("unexpected passage id %d in OpenAI response", ps.ID),
				Retryable: true,
			}
		}
		result[ps.ID] = ps.Text
		filled[ps.ID] = true
	}
	return result, nil
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "timeout", "connection refused", "connection reset", "temporary"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Verify OpenAIProvider implements AIProvider
var _ AIProvider = (*OpenAIProvider)(nil)
