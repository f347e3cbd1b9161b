// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission implements the hook-in point spec §9's Open Questions
// call for instead of a hard-coded UX: "the core should expose a hook-in
// point (credential invalid, risk control detected) rather than hard-code a
// flow". Captcha and initial-setup handling are external collaborators out
// of scope; this package only defines where the scheduler reports the two
// conditions.
package admission

import "context"

// Hook is called by the scheduler when a source adapter surfaces one of the
// two conditions spec §7's error-policy table maps to a manual
// intervention: RemoteForbidden ("credential invalid") and
// RemoteRiskControl ("anti-abuse challenge"). Implementations decide what,
// if anything, to surface to an operator. The scheduler calls the hook after
// the failed scan and does not pause the offending source itself; only
// repeated RemoteRiskControl failures trip that source's circuit breaker.
type Hook interface {
	// CredentialInvalid reports that sourceID's stored credential was
	// rejected by the remote platform (RemoteForbidden).
	CredentialInvalid(ctx context.Context, sourceID int64) error

	// RiskControlDetected reports that sourceID's remote calls are being
	// challenged by an anti-abuse mechanism (RemoteRiskControl). evidence is
	// an opaque, loggable description of what triggered the detection (a
	// response body fragment, a header value) for operator diagnosis.
	RiskControlDetected(ctx context.Context, sourceID int64, evidence string) error
}

// NoopHook discards both conditions. It is the default when no admin
// surface is wired, keeping the daemon runnable without the captcha/setup
// flows spec §1 excludes.
type NoopHook struct{}

func (NoopHook) CredentialInvalid(context.Context, int64) error { return nil }

func (NoopHook) RiskControlDetected(context.Context, int64, string) error { return nil }
