// Package realtime runs the gateway's websocket channel.
//
// # Sessions
//
// Hub.Serve upgrades a request, sends a "connected" frame and then reads
// frames one at a time. A chat frame is acknowledged with "chat_processing",
// answered by the Responder and the "chat_response" goes back to that session
// only. Because frames are handled in order, replies arrive in request order.
//
// # Telemetry
//
// When the first session joins, the hub starts a loop that pushes a
// "system_metrics" frame to every session each interval. When the last
// session leaves, the loop is cancelled. Both transitions happen under the
// same mutex as the session-count check, so there is never more than one
// loop and never a loop without sessions. Broadcast copies its targets under
// the lock, writes outside it and drops any session whose write fails.
//
// Close cancels the loop, sends every session a going-away close frame and
// waits for all hub goroutines to exit.
package realtime
