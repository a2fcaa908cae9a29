// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

package controlchannel

import "fmt"

// Phase is the coarse lifecycle position of a Manager's connection.
type Phase int

const (
	// PhaseSetup is the initial phase before the first Connect.
	PhaseSetup Phase = iota

	// PhasePreparing means a connect attempt is in flight.
	PhasePreparing

	// PhaseReady means the socket is connected and messages are
	// written directly.
	PhaseReady

	// PhaseFailed means the last attempt failed or the connection
	// dropped. A reconnect is scheduled unless Disconnect was called.
	PhaseFailed

	// PhaseCancelled means Disconnect was called.
	PhaseCancelled

	// PhaseWaiting means the socket path does not exist yet, usually
	// because the daemon is not running. A reconnect is scheduled.
	PhaseWaiting
)

func (phase Phase) String() string {
	switch phase {
	case PhaseSetup:
		return "setup"
	case PhasePreparing:
		return "preparing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseWaiting:
		return "waiting"
	default:
		return fmt.Sprintf("Phase(%d)", int(phase))
	}
}

// ConnectionState is a Phase plus the error that caused it. Err is
// set only for PhaseFailed and PhaseWaiting.
type ConnectionState struct {
	Phase Phase
	Err   error
}

func (state ConnectionState) String() string {
	if state.Err != nil {
		return fmt.Sprintf("%s(%v)", state.Phase, state.Err)
	}
	return state.Phase.String()
}

// IsReady reports whether the connection is usable for direct writes.
func (state ConnectionState) IsReady() bool {
	return state.Phase == PhaseReady
}
