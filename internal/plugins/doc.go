// Package plugins provides the capability-handler routing core.
//
// # Overview
//
// A Handler is a self-contained capability (time, news, smart home, ...)
// that says whether it can answer a message and, if so, answers it. The
// Registry holds handlers by unique name; the Dispatcher picks which one
// answers a given message.
//
// # Architecture
//
//   - Handler: predicate + responder, optional OnLoad/OnUnload hooks
//   - Registry: name -> handler map with enable/disable toggles
//   - Dispatcher: priority-ordered first-match routing
//
// # Registration
//
// Handlers are registered from an explicit table of factories, so adding a
// capability never touches the Dispatcher:
//
//	registry := plugins.NewRegistry(logger)
//	registry.DiscoverAndLoad(ctx, builtins.Factories(deps))
//
// A factory that fails is logged and skipped. Registering a name that is
// already present replaces the earlier handler.
//
// # Dispatch Order
//
// On every call the Dispatcher sorts handlers by Priority (highest first),
// breaking ties by registration order, then:
//
//  1. Skips disabled handlers
//  2. Asks CanHandle; errors and panics count as "no"
//  3. Calls Handle on the first match and returns its answer
//  4. If Handle fails, moves on to the next handler
//
// Blank messages never match. When nothing answers, Dispatch returns
// ErrNoMatch so callers can fall back to the generative model.
//
// # Matching Helpers
//
// Vocabulary, HasWord and ContainsAny implement the keyword rules handlers
// share: single words match on word boundaries ("lock" does not match
// "blockchain"), multi-word phrases match as substrings.
package plugins
