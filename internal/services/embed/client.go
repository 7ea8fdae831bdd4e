package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Config captures the settings for the local embedding server. The endpoint
// is the OpenAI-compatible API root (for llama.cpp server this is
// http://127.0.0.1:8080/v1). APIKey is optional.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Client produces embeddings through a local OpenAI-compatible server. It
// satisfies manualindex.Embedder.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs an embedding client from the supplied configuration.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("embed client: base url required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("embed client: model required")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		// The SDK requires a token even though local servers ignore it.
		apiKey = "local"
	}
	apiCfg := openai.DefaultConfig(apiKey)
	apiCfg.BaseURL = strings.TrimRight(baseURL, "/")

	return &Client{api: openai.NewClientWithConfig(apiCfg), model: model}, nil
}

// Model returns the configured embedding model identifier.
func (c *Client) Model() string {
	return c.model
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embed request: %d inputs, %d vectors returned", len(inputs), len(resp.Data))
	}

	// The API does not guarantee response order, so place by index.
	vectors := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embed request: vector index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("embed request: missing vector for input %d", i)
		}
	}
	return vectors, nil
}

// HealthCheck embeds a short probe string to verify the server responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	vectors, err := c.Embed(ctx, []string{"health check"})
	if err != nil {
		return err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return errors.New("embed health: empty vector returned")
	}
	return nil
}
