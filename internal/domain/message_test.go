package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessage_InConversation(t *testing.T) {
	m := &Message{SenderID: "a", ReceiverID: "b"}
	assert.True(t, m.InConversation("a", "b"))
	assert.True(t, m.InConversation("b", "a"))
	assert.False(t, m.InConversation("a", "c"))
}

func TestMessage_HiddenFor(t *testing.T) {
	m := &Message{SenderID: "a", ReceiverID: "b", DeletedForSender: true}
	assert.True(t, m.HiddenFor("a"))
	assert.False(t, m.HiddenFor("b"))
	assert.False(t, m.IsDeleted, "per-viewer flag does not imply deleted for everyone")

	m = &Message{SenderID: "a", ReceiverID: "b", DeletedForReceiver: true}
	assert.False(t, m.HiddenFor("a"))
	assert.True(t, m.HiddenFor("b"))
}

func TestMessage_DisplayText(t *testing.T) {
	m := &Message{Text: "hello"}
	assert.Equal(t, "hello", m.DisplayText())
	m.IsDeleted = true
	assert.Equal(t, DeletedPlaceholder, m.DisplayText())
}

func TestMessage_MarkDeleted(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := &Message{
		Text:       "second",
		EditedText: StringPtr("first"),
		ImageURL:   StringPtr("data:image/png;base64,AAAA"),
		AudioURL:   StringPtr("https://x/a.webm"),
	}
	m.MarkDeleted(at)

	assert.True(t, m.IsDeleted)
	assert.Equal(t, at, *m.DeletedAt)
	assert.Empty(t, m.Text)
	assert.Nil(t, m.EditedText)
	assert.Nil(t, m.ImageURL)
	assert.Nil(t, m.AudioURL)
	assert.Equal(t, DeletedPlaceholder, m.DisplayText())
}

func TestMessage_HasContent(t *testing.T) {
	assert.False(t, (&Message{Text: "   "}).HasContent())
	assert.True(t, (&Message{Text: "hi"}).HasContent())
	assert.True(t, (&Message{AudioURL: StringPtr("https://x/a.webm")}).HasContent())
	assert.True(t, (&Message{ImageURL: StringPtr("data:image/png;base64,AAAA")}).HasContent())
}

func TestMessage_Fingerprint(t *testing.T) {
	a := &Message{ID: "temp-1", SenderID: "a", ReceiverID: "b", Text: "hi"}
	b := &Message{ID: "srv-9", SenderID: "a", ReceiverID: "b", Text: "hi"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.AudioURL = StringPtr("https://x/a.webm")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestMessage_Clone(t *testing.T) {
	orig := Message{ID: "1", EditedText: StringPtr("old")}
	c := orig.Clone()
	*c.EditedText = "changed"
	assert.Equal(t, "old", *orig.EditedText)
}

func TestProfile_BadgeSender(t *testing.T) {
	coach := &Profile{Role: RoleCoach}
	sender, ok := coach.BadgeSender()
	assert.True(t, ok)
	assert.Empty(t, sender)

	athlete := &Profile{Role: RoleAthlete, SelectedCoachID: StringPtr("c1")}
	sender, ok = athlete.BadgeSender()
	assert.True(t, ok)
	assert.Equal(t, "c1", sender)

	_, ok = (&Profile{Role: RoleAthlete}).BadgeSender()
	assert.False(t, ok)
}
