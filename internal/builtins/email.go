// ABOUTME: Email handler: drafts composed from "to X about Y", inbox summary, draft listing.
// ABOUTME: Drafts are kept in memory for the lifetime of the handler.

package builtins

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/2389/jarvis-gateway/internal/plugins"
)

var emailVocabulary = plugins.NewVocabulary(
	"email", "emails", "mail", "inbox", "send message",
	"compose", "draft", "drafts", "unread",
)

const inboxSummary = "Checking your inbox...\n\n" +
	"  Inbox Summary:\n" +
	"  - 3 unread emails\n" +
	"  - 1 from Pepper Potts: \"Board Meeting Tomorrow\"\n" +
	"  - 1 from Happy Hogan: \"Security Update\"\n" +
	"  - 1 from Nick Fury: \"Classified - Eyes Only\"\n\n" +
	"Would you like me to read any of these, Sir?"

const emailHelp = "Email system online. You can:\n" +
	"  - \"Compose email to [name] about [subject]\"\n" +
	"  - \"Check my inbox\"\n" +
	"  - \"Show email drafts\"\n" +
	"How can I assist you, Sir?"

type draft struct {
	to      string
	subject string
}

// Email composes drafts and summarises the inbox.
type Email struct {
	mu     sync.Mutex
	drafts []draft
}

// NewEmail creates an Email handler with no drafts.
func NewEmail() *Email {
	return &Email{}
}

func (e *Email) Info() plugins.Info {
	return plugins.Info{
		Name:        NameEmail,
		Version:     plugins.DefaultVersion,
		Description: "Email composition, summary, and management",
		Priority:    6,
		Commands: []string{
			"send email",
			"compose email",
			"check email",
			"read emails",
			"draft email",
		},
	}
}

func (e *Email) CanHandle(_ context.Context, message string) (bool, error) {
	return emailVocabulary.Matches(message), nil
}

func (e *Email) Handle(_ context.Context, message string, _ plugins.HandleContext) (string, error) {
	msg := strings.ToLower(message)

	switch {
	case strings.Contains(msg, "draft") && plugins.ContainsAny(msg, "show", "list", "my drafts"):
		return e.listDrafts(), nil
	case plugins.ContainsAny(msg, "send", "compose", "write", "draft"):
		return e.compose(msg), nil
	case plugins.ContainsAny(msg, "check", "inbox", "unread", "read"):
		return inboxSummary, nil
	case strings.Contains(msg, "draft"):
		return e.listDrafts(), nil
	}
	return emailHelp, nil
}

// compose parses "... to <recipient> about <subject>" and saves a draft.
func (e *Email) compose(msg string) string {
	d := draft{to: "recipient", subject: "your request"}
	if _, afterTo, ok := strings.Cut(msg, " to "); ok {
		if to, about, ok := strings.Cut(afterTo, " about "); ok {
			d.to = strings.TrimSpace(to)
			d.subject = strings.TrimSpace(about)
		} else {
			d.to = strings.TrimRight(strings.TrimSpace(afterTo), ".")
		}
	}

	e.mu.Lock()
	e.drafts = append(e.drafts, d)
	e.mu.Unlock()

	return fmt.Sprintf("Email draft prepared:\n"+
		"  To: %s\n"+
		"  Subject: %s\n\n"+
		"Draft saved. Would you like me to send it, or would you like to add a body, Sir?",
		titleCase(d.to), titleCase(d.subject))
}

func (e *Email) listDrafts() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.drafts) == 0 {
		return "No drafts saved, Sir."
	}
	items := make([]string, len(e.drafts))
	for i, d := range e.drafts {
		items[i] = fmt.Sprintf("To: %s | Subject: %s", titleCase(d.to), titleCase(d.subject))
	}
	return "Your email drafts:\n" + numbered(items)
}
