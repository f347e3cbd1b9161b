// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"

	"github.com/vidsync/vidsync/internal/log"
)

// LogSender is the reference Sender: it writes each message as a single log
// line. It keeps the daemon runnable end to end without a real notification
// backend configured; concrete transports (webhook, IM bot, email) are
// external collaborators out of scope per spec §1.
type LogSender struct{}

func (LogSender) Send(_ context.Context, message string) error {
	log.WithComponent("notify").Info().Str("message", message).Msg("notification dispatched")
	return nil
}

// Channel names a single active notification transport. Only one channel
// may be active at a time, per spec §4.10's "at most one transport" rule.
type Channel string

const (
	ChannelNone Channel = ""
	ChannelLog  Channel = "log"
)

// Dispatcher holds the one active Sender, if any, and the channel form it
// was built for.
type Dispatcher struct {
	channel Channel
	form    ChannelForm
	sender  Sender
}

// NewDispatcher returns a Dispatcher with no active channel; Dispatch is
// then a no-op until SetActiveChannel is called.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{channel: ChannelNone}
}

// SetActiveChannel installs the single active transport. Passing
// ChannelNone disables dispatch.
func (d *Dispatcher) SetActiveChannel(channel Channel, form ChannelForm, sender Sender) {
	d.channel = channel
	d.form = form
	d.sender = sender
}

// ActiveChannel reports which channel is currently selected.
func (d *Dispatcher) ActiveChannel() Channel {
	return d.channel
}

// Dispatch renders and sends a ScanSummary through the active channel. It is
// a no-op if no channel is active.
func (d *Dispatcher) Dispatch(ctx context.Context, summary ScanSummary) error {
	if d.channel == ChannelNone || d.sender == nil {
		return nil
	}
	summary.SortForDisplay()
	for _, message := range BuildMessages(summary, d.form) {
		if err := d.sender.Send(ctx, message); err != nil {
			return err
		}
	}
	return nil
}
