package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"
)

// rawContentPrefix bounds how much of an unparseable model reply is kept
// in the error.
const rawContentPrefix = 500

// OpenAIGenerator talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

var _ repository.LLMGenerator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(apiKey, baseURL, model string, temperature float64, timeout time.Duration, logger *slog.Logger) *OpenAIGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIGenerator{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, brief string, prompt entity.Prompt) (entity.Artifact, error) {
	if g.baseURL == "" || g.apiKey == "" {
		metrics.IncError("llm", "config_missing")
		return entity.Artifact{}, apperr.New(apperr.KindConfiguration, "llm", "LLM config missing (LLM_API_BASE / LLM_API_KEY)")
	}
	metrics.IncLLMRequest(g.model)

	request := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": prompt.Text,
			},
			{
				"role":    "user",
				"content": entity.UserPrompt(brief),
			},
		},
		"temperature": g.temperature,
	}

	response, err := g.makeRequest(ctx, request)
	if err != nil {
		return entity.Artifact{}, err
	}

	content, err := g.messageContent(response)
	if err != nil {
		metrics.IncError("llm", "parse_response")
		return entity.Artifact{}, err
	}

	files, err := parseFiles(content)
	if err != nil {
		metrics.IncError("llm", "parse_files")
		return entity.Artifact{}, err
	}
	metrics.ObserveGeneratedFiles(len(files))

	return entity.Artifact{Files: files, Model: g.model}, nil
}

func (g *OpenAIGenerator) makeRequest(ctx context.Context, request map[string]interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, apperr.Wrap(apperr.KindConfiguration, "llm", fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		return nil, apperr.Wrap(apperr.KindTransport, "llm", fmt.Errorf("failed to make request: %w", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn("close llm response body", "err", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		return nil, apperr.Newf(apperr.KindTransport, "llm", "LLM call failed: %d", resp.StatusCode).WithDetail(string(body))
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, apperr.Wrap(apperr.KindMalformedResponse, "llm", fmt.Errorf("failed to decode response: %w", err))
	}

	return response, nil
}

func (g *OpenAIGenerator) messageContent(response map[string]interface{}) (string, error) {
	choices, ok := response["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", apperr.New(apperr.KindMalformedResponse, "llm", "invalid response format: no choices")
	}

	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", apperr.New(apperr.KindMalformedResponse, "llm", "invalid response format: invalid choice")
	}

	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", apperr.New(apperr.KindMalformedResponse, "llm", "invalid response format: no message")
	}

	content, ok := message["content"].(string)
	if !ok {
		return "", apperr.New(apperr.KindMalformedResponse, "llm", "invalid response format: no content")
	}

	return content, nil
}

// parseFiles decodes the model's message content, which must itself be a
// JSON document of the form {"files":[{"path":...,"content":...}]}.
func parseFiles(content string) ([]entity.GeneratedFile, error) {
	var doc interface{}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, apperr.Newf(apperr.KindMalformedResponse, "llm", "LLM returned non-JSON content: %w", err).
			WithDetail(prefix(content, rawContentPrefix))
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, apperr.Wrap(apperr.KindMalformedResponse, "llm", apperr.ErrMissingFiles)
	}
	rawFiles, ok := obj["files"].([]interface{})
	if !ok || len(rawFiles) == 0 {
		return nil, apperr.Wrap(apperr.KindMalformedResponse, "llm", apperr.ErrMissingFiles)
	}

	files := make([]entity.GeneratedFile, 0, len(rawFiles))
	for i, raw := range rawFiles {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, apperr.Wrap(apperr.KindMalformedResponse, "llm", fmt.Errorf("file %d: %w", i, apperr.ErrInvalidFileEntry))
		}
		path, _ := entry["path"].(string)
		body, hasContent := entry["content"].(string)
		if path == "" || !hasContent {
			return nil, apperr.Wrap(apperr.KindMalformedResponse, "llm", fmt.Errorf("file %d: %w", i, apperr.ErrInvalidFileEntry))
		}
		files = append(files, entity.GeneratedFile{Path: path, Content: body})
	}
	return files, nil
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
