package bot

import "testing"

func TestEntityText_UTF16Offsets(t *testing.T) {
	// The emoji is two UTF-16 code units, so the url starts at offset 3.
	text := "🙂 example.com ok"
	s, ok := EntityText(text, Entity{Type: EntityURL, Offset: 3, Length: 11})
	if !ok || s != "example.com" {
		t.Fatalf("EntityText = (%q,%v)", s, ok)
	}
	if _, ok := EntityText(text, Entity{Offset: 10, Length: 50}); ok {
		t.Fatalf("out of range span must be rejected")
	}
}

func TestMessage_FindLink(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
		ok   bool
	}{
		{"plain", Message{Text: "hello"}, "", false},
		{"url", Message{Text: "see go.dev now", Entities: []Entity{{Type: EntityURL, Offset: 4, Length: 6}}}, "go.dev", true},
		{"text link", Message{Text: "click", Entities: []Entity{{Type: EntityTextLink, Offset: 0, Length: 5, URL: "https://x.io"}}}, "https://x.io", true},
		{"email in caption", Message{Caption: "mail a@b.c", Entities: []Entity{{Type: EntityEmail, Offset: 5, Length: 5}}}, "a@b.c", true},
		{"mention only", Message{Text: "@someone", Entities: []Entity{{Type: EntityMention, Offset: 0, Length: 8}}}, "", false},
	}
	for _, tc := range cases {
		got, ok := tc.msg.FindLink()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: FindLink = (%q,%v); want (%q,%v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestUserAndChatNames(t *testing.T) {
	if got := (User{ID: 5, Username: "nick"}).DisplayName(); got != "nick" {
		t.Fatalf("DisplayName username fallback = %q", got)
	}
	if got := (User{ID: 5}).DisplayName(); got != "5" {
		t.Fatalf("DisplayName id fallback = %q", got)
	}
	if got := (Chat{ID: -100}).Name(); got != "-100" {
		t.Fatalf("Chat.Name fallback = %q", got)
	}
	if !(Chat{Type: ChatSuperGroup}).IsGroup() || (Chat{Type: ChatPrivate}).IsGroup() {
		t.Fatalf("IsGroup mismatch")
	}
	if !StatusCreator.IsAdmin() || StatusRestricted.IsAdmin() {
		t.Fatalf("IsAdmin mismatch")
	}
}
