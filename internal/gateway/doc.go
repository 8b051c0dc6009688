// Package gateway orchestrates the jarvis-gateway server components.
//
// # Overview
//
// The gateway package owns every long-lived component: the handler
// registry, the response orchestrator, the realtime hub, the speech service,
// the conversation store and the HTTP server in front of them.
//
// # HTTP API
//
// Every versioned route lives under /api/v1:
//
//   - GET /api/v1/health - Liveness check
//   - POST /api/v1/chat - Answer one chat turn and persist it
//   - GET /api/v1/chat/history - Conversation history, newest first
//   - GET|DELETE /api/v1/chat/history/{session} - One session's history
//   - GET /api/v1/plugins[/{name}] - Handler metadata
//   - POST /api/v1/plugins/{name}/toggle?enable= - Enable or disable a handler
//   - /api/v1/skills/skills/... - The same inventory in the skills shape
//   - GET /api/v1/system/health - Host telemetry snapshot
//   - /api/v1/speech/... - Transcription, synthesis and voices
//   - GET /api/v1/ws - Realtime websocket channel
//
// Errors share one body:
//
//	{"error": true, "status_code": 422, "message": "...",
//	 "details": [{"field": "body -> message", "message": "field required"}],
//	 "request_id": "...", "timestamp": "..."}
//
// # Middleware
//
// Outermost first: request id and access log, panic recovery, CORS,
// security headers, body size limit, rate limit. Health, metrics and the
// websocket upgrade are exempt from rate limiting.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	err = gw.Run(ctx) // blocks; shuts down when ctx is canceled
//
// Run listens on server.http_addr, or joins the tailnet when tailscale is
// enabled. Shutdown stops the HTTP server, closes realtime sessions, unloads
// handlers and closes the store.
package gateway
