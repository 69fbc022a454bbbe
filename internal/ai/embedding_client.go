package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"document-archive-platform/internal/config"
	"document-archive-platform/internal/logger"
	"document-archive-platform/internal/telemetry"
)

// ErrNotConfigured is returned when no Gemini API key is set.
var ErrNotConfigured = errors.New("GEMINI_API_KEY not configured")

// ProviderError is a Gemini API failure that survived the model
// fallback. The upstream message is passed through to the caller.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Gemini API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("Gemini API error: %s", e.Message)
}

type embedPart struct {
	Text string `json:"text"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedRequest struct {
	Model                string       `json:"model"`
	Content              embedContent `json:"content"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *apiError `json:"error,omitempty"`
}

type modelInfo struct {
	Name                       string   `json:"name"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type listModelsResponse struct {
	Models []modelInfo `json:"models"`
}

// EmbeddingClient converts text to fixed-dimension vectors via the
// Gemini embedContent endpoint.
//
// Model resolution: the configured default model is used until it 404s,
// at which point the client lists available models, picks an
// embedding-capable one and retries once. The discovered model is
// cached for the process lifetime. The cache is mutex-guarded;
// concurrent first calls may both run discovery, which only costs a
// duplicate network call.
type EmbeddingClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	dimensions   int
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	metrics      *telemetry.Metrics

	mu            sync.Mutex
	resolvedModel string
}

func NewEmbeddingClient(cfg *config.Config, metrics *telemetry.Metrics) *EmbeddingClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &EmbeddingClient{
		apiKey:       cfg.GeminiAPIKey,
		baseURL:      strings.TrimRight(cfg.GeminiBaseURL, "/"),
		defaultModel: cfg.EmbeddingModel,
		dimensions:   cfg.EmbeddingDimensions,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.EmbeddingTimeout) * time.Second,
		},
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 5),
		metrics:     metrics,
	}
}

// Dimensions is the configured output dimensionality D.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// ModelName is the model the next call will use: the discovered model
// if fallback has run, the configured default otherwise.
func (c *EmbeddingClient) ModelName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolvedModel != "" {
		return c.resolvedModel
	}
	return c.defaultModel
}

// Embed returns the embedding vector for text, of length Dimensions.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.embedWithFallback(ctx, text)
	})
	c.metrics.RecordEmbeddingRequest(c.ModelName(), err == nil)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &ProviderError{Message: "embedding service temporarily unavailable"}
		}
		return nil, err
	}
	return result.([]float32), nil
}

func (c *EmbeddingClient) embedWithFallback(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	model := c.resolvedModel
	discovered := model != ""
	if !discovered {
		model = c.defaultModel
	}
	c.mu.Unlock()

	status, vec, upstreamMsg, err := c.callEmbed(ctx, model, text)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound && !discovered {
		logger.Warn("Gemini model not found, discovering available embedding models", "model", model)
		fallback, err := c.discoverEmbeddingModel(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.resolvedModel = fallback
		c.mu.Unlock()

		// One retry with the discovered model; a second failure is fatal.
		status, vec, upstreamMsg, err = c.callEmbed(ctx, fallback, text)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		return nil, &ProviderError{StatusCode: status, Message: upstreamMsg}
	}
	if len(vec) != c.dimensions {
		return nil, &ProviderError{
			Message: fmt.Sprintf("model %q returned %d dimensions, expected %d", c.ModelName(), len(vec), c.dimensions),
		}
	}
	return vec, nil
}

// callEmbed performs one embedContent request. Non-200 statuses are
// returned for classification rather than as errors, together with the
// upstream error message extracted from the body.
func (c *EmbeddingClient) callEmbed(ctx context.Context, model, text string) (int, []float32, string, error) {
	reqBody := embedRequest{
		Model:                "models/" + model,
		Content:              embedContent{Parts: []embedPart{{Text: text}}},
		OutputDimensionality: c.dimensions,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, "", fmt.Errorf("embedding request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", fmt.Errorf("failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil, upstreamMessage(body), nil
	}

	var embedResp embedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return 0, nil, "", fmt.Errorf("failed to unmarshal response: %v", err)
	}
	if embedResp.Error != nil {
		return resp.StatusCode, nil, "", &ProviderError{StatusCode: embedResp.Error.Code, Message: embedResp.Error.Message}
	}
	return resp.StatusCode, embedResp.Embedding.Values, "", nil
}

// upstreamMessage digs the error message out of a Gemini error body,
// falling back to the raw body when it is not the usual shape.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func (c *EmbeddingClient) discoverEmbeddingModel(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/models?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("model discovery request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to list Gemini models: %s", strings.TrimSpace(string(body)))}
	}

	var listResp listModelsResponse
	if err := json.Unmarshal(body, &listResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal model list: %v", err)
	}

	var candidates []modelInfo
	for _, m := range listResp.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "embedContent" {
				candidates = append(candidates, m)
				break
			}
		}
	}
	if len(candidates) == 0 {
		names := make([]string, 0, len(listResp.Models))
		for _, m := range listResp.Models {
			names = append(names, m.Name)
		}
		return "", &ProviderError{Message: fmt.Sprintf("no embedding models available; models found: %s", strings.Join(names, ", "))}
	}

	// Prefer a model with "embedding" in the name; sort descending so
	// the lexicographically last (newest version) wins either way.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Name > candidates[j].Name
	})
	chosen := candidates[0]
	for _, m := range candidates {
		if strings.Contains(m.Name, "embedding") {
			chosen = m
			break
		}
	}

	modelID := strings.TrimPrefix(chosen.Name, "models/")
	logger.Info("Gemini: auto-selected embedding model", "model", modelID, "candidates", len(candidates))
	return modelID, nil
}
