// Package hfinference talks to a Hugging Face Inference API compatible
// endpoint for text generation and feature-extraction embeddings. It is the
// single network-bound stage of the query pipeline and runs under the
// resilience executor: bounded retries with backoff, then the caller degrades.
package hfinference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agrisense/agrisense-engine/internal/core/domain"
	"github.com/agrisense/agrisense-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel, token string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		token:      token,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Generate runs one text-generation call. Transient failures are retried by
// the executor; an exhausted retry budget surfaces as ErrGenerationUnavailable
// so the composer can fall back to an extractive answer.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 512
	}

	request := map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens":   maxTokens,
			"return_full_text": false,
		},
	}

	var response []struct {
		GeneratedText string `json:"generated_text"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/models/"+c.genModel, request, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.generate", call, classifyInferenceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapGenerationError("generate", err)
	}
	if len(response) == 0 {
		return "", domain.WrapError(domain.ErrGenerationUnavailable, "generate", fmt.Errorf("empty generation result"))
	}
	return strings.TrimSpace(response[0].GeneratedText), nil
}

// Embed calls the feature-extraction pipeline for a batch of texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{"inputs": texts}
	var response [][]float32

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/pipeline/feature-extraction/"+c.embedModel, request, &response, "embed")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.embed", call, classifyInferenceError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(response) != len(texts) {
		return nil, fmt.Errorf("embed result length %d, want %d", len(response), len(texts))
	}
	return response, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
