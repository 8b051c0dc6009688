// Package metrics exports gateway activity to Prometheus.
//
// Metrics satisfies the small observer interfaces declared by the packages it
// watches, so none of them import Prometheus:
//
//   - plugins.Observer: dispatch outcomes and handler failures
//   - assistant.Observer: generative fallback outcomes by kind
//   - ratelimit.Observer: rejections by bucket
//   - realtime.Observer: open session gauge
//   - speech.Observer: speech operations by outcome
//
// The gateway calls ObserveRequest once per HTTP request and mounts Handler
// at the configured metrics path.
package metrics
