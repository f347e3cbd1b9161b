// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	messages []string
}

func (r *recordingSender) Send(_ context.Context, message string) error {
	r.messages = append(r.messages, message)
	return nil
}

func TestDispatcherNoopWithoutActiveChannel(t *testing.T) {
	d := NewDispatcher()
	require.Equal(t, ChannelNone, d.ActiveChannel())
	err := d.Dispatch(context.Background(), ScanSummary{Sources: []SourceSummary{{DisplayName: "x"}}})
	require.NoError(t, err)
}

func TestDispatcherSendsThroughActiveChannel(t *testing.T) {
	d := NewDispatcher()
	rec := &recordingSender{}
	d.SetActiveChannel(ChannelLog, LongForm, rec)

	summary := ScanSummary{
		Sources: []SourceSummary{
			{DisplayName: "Channel", Videos: []VideoSummary{{Title: "V", Bvid: "BV1"}}},
		},
	}
	err := d.Dispatch(context.Background(), summary)
	require.NoError(t, err)
	require.Len(t, rec.messages, 1)
	require.Contains(t, rec.messages[0], "Channel")
}

func TestLogSenderReturnsNoError(t *testing.T) {
	err := LogSender{}.Send(context.Background(), "hello")
	require.NoError(t, err)
}
