package format

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult is plain text plus the Telegram entities that style it.
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// uses for entity offsets.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

var markers = []struct {
	re     *regexp.Regexp
	entity string
}{
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "bold"},
	{regexp.MustCompile("`([^`]+?)`"), "code"},
	{regexp.MustCompile(`__(.+?)__`), "italic"},
}

// ParseMarkdown strips **bold**, `code` and __italic__ markers from text and
// returns the equivalent message entities. Markers do not nest.
func ParseMarkdown(text string) ParseResult {
	var entities []tgbotapi.MessageEntity
	result := text

	for _, m := range markers {
		for {
			loc := m.re.FindStringSubmatchIndex(result)
			if loc == nil {
				break
			}
			inner := result[loc[2]:loc[3]]
			offset := UTF16Len(result[:loc[0]])
			length := UTF16Len(inner)
			removed := UTF16Len(result[loc[0]:loc[1]]) - length

			// Entities already recorded after this match shift left.
			for i := range entities {
				if entities[i].Offset > offset {
					entities[i].Offset -= removed
				}
			}
			entities = append(entities, tgbotapi.MessageEntity{Type: m.entity, Offset: offset, Length: length})
			result = result[:loc[0]] + inner + result[loc[1]:]
		}
	}

	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Offset < entities[j].Offset })

	return ParseResult{
		Text:     strings.TrimRight(result, " \n"),
		Entities: entities,
	}
}
