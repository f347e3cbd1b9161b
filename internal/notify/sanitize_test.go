// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsNonBMP(t *testing.T) {
	got := Sanitize("Hello 😀 World")
	require.Equal(t, "Hello  World", got)
}

func TestSanitizeFoldsLensBrackets(t *testing.T) {
	got := Sanitize("【重磅】新番放送")
	require.Equal(t, "[重磅]新番放送", got)
}

func TestSanitizeFoldsFullwidthAlnum(t *testing.T) {
	got := Sanitize("ＡＢＣ１２３")
	require.Equal(t, "ABC123", got)
}

func TestSanitizeLeavesPlainTextUnchanged(t *testing.T) {
	got := Sanitize("plain ascii title")
	require.Equal(t, "plain ascii title", got)
}
