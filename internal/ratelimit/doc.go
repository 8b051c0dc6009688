// Package ratelimit guards the HTTP surface against request floods and
// oversized bodies.
//
// A Limiter keeps, per client, the timestamps admitted in the last window.
// A request is rejected once the window already holds limit timestamps; the
// retry hint is the time until the oldest one expires, rounded up to whole
// seconds and never below one.
//
// Guard applies two independent limiters: a strict one for POST requests to
// chat paths and a looser one for everything else. Paths ending in /health
// or /ws, plus any configured exact paths, are never limited.
//
// Clients are keyed by the direct peer address. X-Forwarded-For is read only
// when that peer is listed in TrustedProxies.
//
// Per-client state is never evicted. Clients reports its size so growth is
// visible in metrics.
package ratelimit
