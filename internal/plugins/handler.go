// ABOUTME: Handler contract implemented by every capability plugin.
// ABOUTME: Declares the predicate/responder pair, optional lifecycle hooks, and metadata.

package plugins

import "context"

// DefaultVersion is reported for handlers that leave Info.Version empty.
const DefaultVersion = "1.0.0"

// Info describes a handler. It is read once at registration time.
type Info struct {
	Name        string
	Version     string
	Description string
	// Priority orders dispatch: higher values are asked first.
	Priority int
	// Commands lists example phrases for display only.
	Commands []string
	// StartDisabled keeps the handler out of DiscoverAndLoad and marks it
	// disabled when registered explicitly.
	StartDisabled bool
}

// HandleContext carries per-request values a handler may use when answering.
type HandleContext struct {
	SessionID string
}

// Handler is a self-contained capability. CanHandle must be a pure,
// deterministic predicate (the empty string included); Handle produces the
// reply and may keep handler-private state. Handlers convert their own I/O
// failures into apology text; a returned error or a panic is treated by the
// Dispatcher as "no answer" and the next handler is tried.
type Handler interface {
	Info() Info
	CanHandle(ctx context.Context, message string) (bool, error)
	Handle(ctx context.Context, message string, hc HandleContext) (string, error)
}

// Loader is implemented by handlers that need setup when registered.
type Loader interface {
	OnLoad(ctx context.Context) error
}

// Unloader is implemented by handlers that need teardown when removed.
type Unloader interface {
	OnUnload(ctx context.Context) error
}

// Factory constructs a handler. Factories form the static registration table
// passed to Registry.DiscoverAndLoad.
type Factory func() (Handler, error)

// Metadata is the externally visible description of a registered handler.
type Metadata struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
	Priority    int      `json:"priority"`
	Commands    []string `json:"commands"`
}
