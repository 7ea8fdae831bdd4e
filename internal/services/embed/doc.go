// Package embed wraps a local OpenAI-compatible embeddings endpoint for the
// manual index. Vectors are requested in batches and returned in input order.
package embed
