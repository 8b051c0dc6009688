// Package llm wraps the generative-language model used when no capability
// handler answers a message.
//
// New returns a GeminiProvider when an API key is configured and the
// Unconfigured provider otherwise. Every failure is an *Error whose Kind
// tells the caller which apology to show; raw upstream detail stays in the
// logs.
package llm
