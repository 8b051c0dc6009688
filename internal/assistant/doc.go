// Package assistant turns a chat message into a reply envelope.
//
// Respond asks the capability handlers first. When one answers, the envelope
// names it in plugin_used (or the "plugin_system" marker when handler names
// are hidden). Otherwise the generative model answers with the Jarvis
// preamble, bounded by the fallback timeout. Without credentials one of the
// fixed limited-mode messages is returned; any other provider failure becomes
// an apology naming the failure category.
//
// Respond never returns an error and never persists anything.
package assistant
