// Package speech provides speech-to-text and text-to-speech for the gateway.
//
// # Providers
//
//   - Whisper: multipart upload to a whisper-compatible inference server
//   - ElevenLabs: cloud synthesis and voice listing
//   - Piper: local synthesis server, used as ElevenLabs' fallback
//
// Chain tries synthesizers in order, so a failed ElevenLabs call falls back
// to the local server.
//
// # Service
//
// Service bounds concurrent upstream calls with a weighted semaphore and
// applies one timeout to the whole call, including the wait for a worker.
// Every failure is an *Error carrying a Kind; the HTTP layer turns
// recognition failures into a degraded but valid reply rather than an error.
package speech
