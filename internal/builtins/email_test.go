// ABOUTME: Tests for the email handler.

package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail_ComposeParsesRecipientAndSubject(t *testing.T) {
	e := NewEmail()

	reply := ask(t, e, "Compose email to pepper potts about the board meeting")

	assert.Equal(t, "Email draft prepared:\n"+
		"  To: Pepper Potts\n"+
		"  Subject: The Board Meeting\n\n"+
		"Draft saved. Would you like me to send it, or would you like to add a body, Sir?", reply)
}

func TestEmail_ComposeWithoutSubject(t *testing.T) {
	reply := ask(t, NewEmail(), "send email to happy.")
	assert.Contains(t, reply, "To: Happy\n")
	assert.Contains(t, reply, "Subject: Your Request\n")
}

func TestEmail_Inbox(t *testing.T) {
	reply := ask(t, NewEmail(), "check my inbox")
	assert.Equal(t, inboxSummary, reply)
}

func TestEmail_ListDrafts(t *testing.T) {
	e := NewEmail()
	assert.Equal(t, "No drafts saved, Sir.", ask(t, e, "show my drafts"))

	ask(t, e, "draft email to rhodey about suit maintenance")
	assert.Equal(t, "Your email drafts:\n  1. To: Rhodey | Subject: Suit Maintenance", ask(t, e, "show my drafts"))
}

func TestEmail_Help(t *testing.T) {
	assert.Equal(t, emailHelp, ask(t, NewEmail(), "email"))
}
