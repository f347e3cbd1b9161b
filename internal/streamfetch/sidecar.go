// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package streamfetch

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// danmakuDocument mirrors the platform's bullet-comment XML export: one <d>
// element per comment, its "p" attribute a comma-separated
// time,mode,font,color,... tuple whose first field is the playback offset
// in seconds.
type danmakuDocument struct {
	Comments []danmakuComment `xml:"d"`
}

type danmakuComment struct {
	P    string `xml:"p,attr"`
	Text string `xml:",chardata"`
}

// ConvertDanmakuToASS renders a platform danmaku XML export into a minimal
// scrolling-comment ASS subtitle track (spec §4.3's per-page danmaku
// sidecar), one Dialogue line per comment timed at its recorded offset.
func ConvertDanmakuToASS(xmlData []byte) (string, error) {
	var doc danmakuDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return "", fmt.Errorf("streamfetch: decode danmaku xml: %w", err)
	}

	var b strings.Builder
	b.WriteString(assHeader)
	for _, c := range doc.Comments {
		offset := danmakuOffsetSeconds(c.P)
		start := formatASSTimestamp(offset)
		end := formatASSTimestamp(offset + danmakuDurationSeconds)
		text := strings.NewReplacer("\n", "\\N", "{", "(", "}", ")").Replace(c.Text)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Danmaku,,0,0,0,,%s\n", start, end, text)
	}
	return b.String(), nil
}

const danmakuDurationSeconds = 6.0

const assHeader = `[Script Info]
ScriptType: v4.00+
Collisions: Normal

[V4+ Styles]
Format: Name, Fontsize, PrimaryColour, Alignment, MarginL, MarginR, MarginV
Style: Danmaku,32,&H00FFFFFF,8,20,20,2

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

func danmakuOffsetSeconds(p string) float64 {
	fields := strings.Split(p, ",")
	if len(fields) == 0 {
		return 0
	}
	var offset float64
	fmt.Sscanf(fields[0], "%f", &offset)
	return offset
}

func formatASSTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(seconds*100 + 0.5)
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	c := cs % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, c)
}

// subtitleDocument mirrors the platform's closed-caption JSON export: a flat
// list of timed cues.
type subtitleDocument struct {
	Body []subtitleCue `json:"body"`
}

type subtitleCue struct {
	From    float64 `json:"from"`
	To      float64 `json:"to"`
	Content string  `json:"content"`
}

// ConvertSubtitleToSRT renders a platform subtitle JSON export into SRT
// (spec §4.3's per-page subtitle sidecar).
func ConvertSubtitleToSRT(jsonData []byte) (string, error) {
	var doc subtitleDocument
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return "", fmt.Errorf("streamfetch: decode subtitle json: %w", err)
	}

	var b strings.Builder
	for i, cue := range doc.Body {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTimestamp(cue.From), formatSRTTimestamp(cue.To), cue.Content)
	}
	return b.String(), nil
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	m := (ms / 60000) % 60
	s := (ms / 1000) % 60
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, frac)
}
