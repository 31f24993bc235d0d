package format

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestUTF16Len(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int
	}{
		{"abc", 3},
		{"время", 5},
		{"⏰", 1},
		{"🏃", 2},
	}
	for _, tt := range tests {
		if got := UTF16Len(tt.in); got != tt.want {
			t.Errorf("UTF16Len(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMarkdown(t *testing.T) {
	t.Parallel()
	got := ParseMarkdown("🏃 **run** at `07:30` then __rest__\n")

	if want := "🏃 run at 07:30 then rest"; got.Text != want {
		t.Fatalf("Text = %q, want %q", got.Text, want)
	}
	want := []tgbotapi.MessageEntity{
		{Type: "bold", Offset: 3, Length: 3},
		{Type: "code", Offset: 10, Length: 5},
		{Type: "italic", Offset: 21, Length: 4},
	}
	if len(got.Entities) != len(want) {
		t.Fatalf("got %d entities, want %d: %+v", len(got.Entities), len(want), got.Entities)
	}
	for i := range want {
		e := got.Entities[i]
		if e.Type != want[i].Type || e.Offset != want[i].Offset || e.Length != want[i].Length {
			t.Errorf("entity %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestParseMarkdownPlain(t *testing.T) {
	t.Parallel()
	got := ParseMarkdown("no markers here")
	if got.Text != "no markers here" || len(got.Entities) != 0 {
		t.Fatalf("ParseMarkdown = %+v", got)
	}
}
