// Package llm provides an OpenAI-compatible chat completion client used by
// the LLM translator and the LLM preflight check.
//
// # Configuration
//
// Requires api_key and model; base_url defaults to the DashScope
// compatible-mode endpoint and may be either an API base ending in /v1 or a
// full chat/completions URL. The OPENAI_API_KEY, OPENAI_API_BASE and
// MODEL_NAME environment variables are applied by the config package.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send chat messages, receive plain-text content.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately.
package llm
