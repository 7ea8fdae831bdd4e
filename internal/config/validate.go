package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Segmentation parameters are
// rejected here so a bad window/overlap pair never reaches a running pipeline.
func (c *Config) Validate() error {
	if err := c.validateSegmenter(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateEmbeddings(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSegmenter() error {
	if c.Segmenter.WindowSeconds <= 0 {
		return errors.New("segmenter.window_seconds must be positive")
	}
	if c.Segmenter.OverlapSeconds < 0 {
		return errors.New("segmenter.overlap_seconds must not be negative")
	}
	if c.Segmenter.OverlapSeconds >= c.Segmenter.WindowSeconds {
		return fmt.Errorf(
			"segmenter.overlap_seconds (%d) must be shorter than segmenter.window_seconds (%d)",
			c.Segmenter.OverlapSeconds, c.Segmenter.WindowSeconds,
		)
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval.top_k must be positive")
	}
	if c.Retrieval.ChunkChars < 200 {
		return errors.New("retrieval.chunk_chars must be at least 200")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.Workers <= 0 {
		return errors.New("analysis.workers must be positive")
	}
	if c.Analysis.InferenceSlots <= 0 {
		return errors.New("analysis.inference_slots must be positive")
	}
	if c.Analysis.InferenceSlots > c.Analysis.Workers {
		return errors.New("analysis.inference_slots must not exceed analysis.workers")
	}
	if c.Analysis.MaxAttempts <= 0 {
		return errors.New("analysis.max_attempts must be positive")
	}
	if c.Analysis.PromptTokenBudget < 500 {
		return errors.New("analysis.prompt_token_budget must be at least 500")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := validateLocalURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateEmbeddings() error {
	if err := validateLocalURL("embeddings.base_url", c.Embeddings.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(c.Embeddings.Model) == "" {
		return errors.New("embeddings.model must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

// validateLocalURL enforces the no-egress invariant: inference and embedding
// backends must resolve to loopback or a RFC1918/unique-local host.
func validateLocalURL(field, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	if !isLocalHost(host) {
		return fmt.Errorf("%s must point at a local host, got %q", field, host)
	}
	return nil
}

func isLocalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	for _, prefix := range []string{"10.", "192.168.", "172.16.", "172.17.", "172.18.", "172.19.", "172.2", "172.30.", "172.31.", "fd"} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	// Bare hostnames (e.g. a docker service name) stay on the local network.
	return !strings.Contains(host, ".")
}
