// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package streamfetch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertDanmakuToASSRendersOneDialoguePerComment(t *testing.T) {
	xmlData := []byte(`<?xml version="1.0"?><i><d p="12.5,1,25,16777215">hello</d><d p="30,1,25,16777215">world</d></i>`)
	out, err := ConvertDanmakuToASS(xmlData)
	require.NoError(t, err)
	require.Contains(t, out, "[Events]")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "world")
	require.Equal(t, 2, countSubstr(out, "Dialogue:"))
}

func TestConvertDanmakuToASSEscapesBraces(t *testing.T) {
	xmlData := []byte(`<?xml version="1.0"?><i><d p="0,1,25,16777215">a{b}c</d></i>`)
	out, err := ConvertDanmakuToASS(xmlData)
	require.NoError(t, err)
	require.Contains(t, out, "a(b)c")
}

func TestConvertDanmakuToASSRejectsInvalidXML(t *testing.T) {
	_, err := ConvertDanmakuToASS([]byte("not xml"))
	require.Error(t, err)
}

func TestFormatASSTimestampRoundsToCentiseconds(t *testing.T) {
	require.Equal(t, "0:00:12.50", formatASSTimestamp(12.5))
	require.Equal(t, "0:00:00.00", formatASSTimestamp(-1))
	require.Equal(t, "1:00:00.00", formatASSTimestamp(3600))
}

func TestConvertSubtitleToSRTRendersSequentialCues(t *testing.T) {
	jsonData := []byte(`{"body":[{"from":1.0,"to":2.5,"content":"hi"},{"from":3,"to":4,"content":"there"}]}`)
	out, err := ConvertSubtitleToSRT(jsonData)
	require.NoError(t, err)
	require.Contains(t, out, "1\n00:00:01,000 --> 00:00:02,500\nhi")
	require.Contains(t, out, "2\n00:00:03,000 --> 00:00:04,000\nthere")
}

func TestConvertSubtitleToSRTRejectsInvalidJSON(t *testing.T) {
	_, err := ConvertSubtitleToSRT([]byte("not json"))
	require.Error(t, err)
}

func TestFormatSRTTimestampRoundsToMilliseconds(t *testing.T) {
	require.Equal(t, "00:00:00,000", formatSRTTimestamp(-5))
	require.Equal(t, "01:00:00,000", formatSRTTimestamp(3600))
}

func countSubstr(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
