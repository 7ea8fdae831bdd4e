// Package llm provides a chat client for a local OpenAI-compatible model
// server (llama.cpp server, Ollama, vLLM).
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.ListModels: enumerate models advertised by the server.
// Client.HealthCheck: verify the server and model respond.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 3 attempts by default).
// Context cancellation aborts retries immediately. Callers that implement
// their own per-attempt policy construct the client with
// WithRetryMaxAttempts(1) so a timeout surfaces after exactly one request.
package llm
