package format

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Builder assembles message text and its entities span by span. Text added
// through it is never scanned for markup, so user-entered strings keep their
// underscores, asterisks and backticks.
type Builder struct {
	sb       strings.Builder
	length   int // UTF-16 units written so far
	entities []tgbotapi.MessageEntity
}

// Plain appends s without styling.
func (b *Builder) Plain(s string) *Builder {
	b.sb.WriteString(s)
	b.length += UTF16Len(s)
	return b
}

func (b *Builder) Plainf(format string, args ...any) *Builder {
	return b.Plain(fmt.Sprintf(format, args...))
}

func (b *Builder) Bold(s string) *Builder   { return b.styled("bold", s) }
func (b *Builder) Italic(s string) *Builder { return b.styled("italic", s) }
func (b *Builder) Code(s string) *Builder   { return b.styled("code", s) }

func (b *Builder) styled(entity, s string) *Builder {
	if s == "" {
		return b
	}
	b.entities = append(b.entities, tgbotapi.MessageEntity{Type: entity, Offset: b.length, Length: UTF16Len(s)})
	return b.Plain(s)
}

// Result returns the text with trailing spaces and newlines removed, and the
// entities in offset order.
func (b *Builder) Result() ParseResult {
	text := strings.TrimRight(b.sb.String(), " \n")
	limit := UTF16Len(text)

	entities := make([]tgbotapi.MessageEntity, 0, len(b.entities))
	for _, e := range b.entities {
		if e.Offset >= limit {
			continue
		}
		if e.Offset+e.Length > limit {
			e.Length = limit - e.Offset
		}
		entities = append(entities, e)
	}
	return ParseResult{Text: text, Entities: entities}
}
