// ABOUTME: Shared test doubles for registry and dispatcher tests.
// ABOUTME: Provides a configurable stub handler with lifecycle hook counters.

package plugins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubHandler matches messages containing keyword and answers with reply.
type stubHandler struct {
	info    Info
	keyword string
	reply   string

	handleErr    error
	handlePanic  bool
	predicateErr error
	loadErr      error
	unloadErr    error

	loads   atomic.Int32
	unloads atomic.Int32
	handled atomic.Int32
}

func newStub(name string, priority int, keyword, reply string) *stubHandler {
	return &stubHandler{
		info:    Info{Name: name, Priority: priority, Description: name + " stub", Commands: []string{keyword}},
		keyword: keyword,
		reply:   reply,
	}
}

func (s *stubHandler) Info() Info { return s.info }

func (s *stubHandler) CanHandle(_ context.Context, message string) (bool, error) {
	if s.predicateErr != nil {
		return false, s.predicateErr
	}
	return s.keyword == "" || strings.Contains(strings.ToLower(message), s.keyword), nil
}

func (s *stubHandler) Handle(_ context.Context, _ string, _ HandleContext) (string, error) {
	s.handled.Add(1)
	if s.handlePanic {
		panic("boom")
	}
	if s.handleErr != nil {
		return "", s.handleErr
	}
	return s.reply, nil
}

func (s *stubHandler) OnLoad(context.Context) error {
	s.loads.Add(1)
	return s.loadErr
}

func (s *stubHandler) OnUnload(context.Context) error {
	s.unloads.Add(1)
	return s.unloadErr
}

var errStub = errors.New("stub failure")
