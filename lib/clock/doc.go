// Copyright 2026 The VibeTunnel Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by the control channel
// for scheduling decisions: reconnect delays, keep-alive ticks, and
// the last-pong timestamp.
//
// Production code holds a Clock field and is constructed with Real().
// Tests construct a FakeClock, start the component, wait for it to
// arm its timers with WaitForTimers, and then move time forward with
// Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := controlchannel.NewManager(config, handlers, logger,
//	    controlchannel.WithClock(fake))
//	manager.Connect()
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
//
// Short poll intervals (socket readiness, would-block retries) are not
// scheduling decisions and stay on wall-clock timers.
package clock
