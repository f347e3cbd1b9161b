// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"fmt"
	"strings"
)

// Size ceilings per spec §4.10. Long-form channels tolerate a larger payload
// than short-form ones. The form is a property of the notification channel a
// message is sent through, not of the kind of content in it.
const (
	LongFormSizeCeiling  = 30 * 1024
	ShortFormSizeCeiling = 4 * 1024
)

// ChannelForm selects which size ceiling a rendered message must respect.
type ChannelForm int

const (
	LongForm ChannelForm = iota
	ShortForm
)

func (f ChannelForm) ceiling() int {
	if f == ShortForm {
		return ShortFormSizeCeiling
	}
	return LongFormSizeCeiling
}

// BuildMessages renders a ScanSummary into one or more plain-text messages,
// each kept under the form's size ceiling. A source section that alone
// exceeds the ceiling keeps every video line and continues in a further
// message that repeats the section header; a single sanitised video line
// longer than the ceiling is truncated.
func BuildMessages(summary ScanSummary, form ChannelForm) []string {
	ceiling := form.ceiling()
	var messages []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, src := range summary.Sources {
		header := fmt.Sprintf("## %s\n", Sanitize(src.DisplayName))
		if current.Len() > 0 && current.Len()+len(header) > ceiling {
			flush()
		}
		current.WriteString(header)

		for _, v := range src.Videos {
			line := formatVideoLine(v)
			if len(line) > ceiling {
				line = line[:ceiling]
			}
			if current.Len()+len(line)+1 > ceiling {
				flush()
				current.WriteString(header)
			}
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	flush()
	return messages
}

func formatVideoLine(v VideoSummary) string {
	title := Sanitize(v.Title)
	if v.Category == "bangumi" && v.Episode > 0 {
		return fmt.Sprintf("- E%d %s (%s)", v.Episode, title, v.Bvid)
	}
	return fmt.Sprintf("- %s (%s)", title, v.Bvid)
}
