// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/miniscope/calab/lib/clock"
)

const (
	// PollInterval is how often the wait loop re-evaluates the session
	// when nothing wakes it earlier.
	PollInterval = time.Second

	// HeartbeatTimeout is how long the browser tool may go without a
	// heartbeat, once it has sent one, before it is considered gone.
	HeartbeatTimeout = 10 * time.Second

	// DefaultAppURL is the public CaTune deployment.
	DefaultAppURL = "https://miniscope.github.io/CaLab/CaTune/"
)

// Outcome is the terminal state of a handoff.
type Outcome int

const (
	// OutcomeWaiting is the zero value; Tune never returns it.
	OutcomeWaiting Outcome = iota

	// OutcomeReceived means the browser tool posted its exported
	// configuration.
	OutcomeReceived

	// OutcomeTimedOut means the caller's timeout elapsed first.
	OutcomeTimedOut

	// OutcomeHeartbeatStale means the browser tool stopped sending
	// heartbeats, usually because the tab was closed.
	OutcomeHeartbeatStale

	// OutcomeCancelled means the caller's context was cancelled.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWaiting:
		return "waiting"
	case OutcomeReceived:
		return "received"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeHeartbeatStale:
		return "heartbeat_stale"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Options configures a Tune call.
type Options struct {
	// Traces is the cells × timepoints matrix to tune against. A
	// mat.Vector is served as a single trace. Required.
	Traces mat.Matrix

	// SamplingRate is the trace sampling rate in Hz. It is served to the
	// browser tool and used when the export omits a rate. Required.
	SamplingRate float64

	// Timeout bounds the whole wait. Zero waits until the tool responds,
	// disconnects, or ctx is cancelled.
	Timeout time.Duration

	// Port is the loopback port to bind. Zero picks an ephemeral port.
	Port int

	// AppURL overrides the browser tool's location, e.g. a local
	// development server. Defaults to DefaultAppURL.
	AppURL string

	// NoBrowser suppresses the Opener. The URL is still printed.
	NoBrowser bool

	// Opener launches the browser. Defaults to SystemOpener.
	Opener Opener

	// Clock drives the wait loop and heartbeat timestamps. Defaults to
	// the real clock.
	Clock clock.Clock

	// Logger receives structured log output. If nil, slog.Default() is
	// used.
	Logger *slog.Logger

	// Output receives the operator-facing messages: the bridge address,
	// the handoff URL, and why the wait ended. Defaults to os.Stdout.
	Output io.Writer
}

// Result describes how a handoff ended.
type Result struct {
	Outcome Outcome

	// Params is the normalized configuration. It is nil unless Outcome
	// is OutcomeReceived.
	Params *Params

	// Exported is the payload exactly as the browser tool posted it,
	// or nil.
	Exported map[string]any

	// URL is the handoff URL given to the opener.
	URL string

	// Elapsed is the time spent waiting, measured on Options.Clock.
	Elapsed time.Duration
}

// Tune serves traces to the browser tool and blocks until the tool posts
// its exported configuration, the timeout elapses, the tool disconnects,
// or ctx is cancelled. Only the first of these counts.
//
// An error is returned only for invalid options or when the port cannot
// be bound. Every other ending, including a timeout or cancellation, is a
// Result with a nil Params. The listener is stopped before Tune returns.
func Tune(ctx context.Context, options Options) (*Result, error) {
	if options.Timeout < 0 {
		return nil, fmt.Errorf("bridge: timeout must not be negative, got %v", options.Timeout)
	}
	if !(options.SamplingRate > 0) || math.IsInf(options.SamplingRate, 0) {
		return nil, fmt.Errorf("bridge: sampling rate must be a positive finite number, got %v", options.SamplingRate)
	}

	appURL := options.AppURL
	if appURL == "" {
		appURL = DefaultAppURL
	}
	base, err := parseAppURL(appURL)
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	output := options.Output
	if output == nil {
		output = os.Stdout
	}
	opener := options.Opener
	if opener == nil {
		opener = SystemOpener{}
	}

	session, err := NewSession(options.Traces, options.SamplingRate, clk)
	if err != nil {
		return nil, err
	}
	logger = logger.With("session_id", session.ID)

	listener := &Listener{
		Session: session,
		Port:    options.Port,
		Logger:  logger,
	}
	if err := listener.Start(); err != nil {
		return nil, err
	}
	defer listener.Stop()

	bridgeURL := listener.URL()
	handoffURL := HandoffURL(base, bridgeURL)
	fmt.Fprintf(output, "Bridge server running on %s\n", bridgeURL)
	fmt.Fprintf(output, "Opening CaTune: %s\n", handoffURL)

	if !options.NoBrowser {
		if err := opener.Open(handoffURL); err != nil {
			logger.Warn("could not open browser, open the URL manually", "url", handoffURL, "error", err)
		}
	}

	start := clk.Now()
	outcome := Await(ctx, session, clk, options.Timeout)
	elapsed := clk.Now().Sub(start)

	result := &Result{Outcome: outcome, URL: handoffURL, Elapsed: elapsed}
	switch outcome {
	case OutcomeReceived:
		result.Exported = session.Exported()
		result.Params = Normalize(result.Exported, options.SamplingRate)
	case OutcomeHeartbeatStale:
		fmt.Fprintln(output, "Browser disconnected (heartbeat timeout).")
	case OutcomeCancelled:
		fmt.Fprintln(output, "Bridge cancelled by user.")
	case OutcomeTimedOut:
		fmt.Fprintf(output, "No parameters received within %v.\n", options.Timeout)
	}

	logger.Info("handoff finished", "outcome", outcome.String(), "elapsed", elapsed)
	return result, nil
}

// Await runs the termination loop for session. It evaluates the session
// immediately, then again whenever the completion latch fires or
// PollInterval elapses on clk, and returns the first terminal outcome:
//
//  1. the latch is set: OutcomeReceived
//  2. timeout > 0 and at least timeout has elapsed: OutcomeTimedOut
//  3. a heartbeat was seen and the latest is older than
//     HeartbeatTimeout: OutcomeHeartbeatStale
//
// Cancelling ctx returns OutcomeCancelled without waiting for the next
// poll.
func Await(ctx context.Context, session *Session, clk clock.Clock, timeout time.Duration) Outcome {
	start := clk.Now()
	for {
		if session.Completed() {
			return OutcomeReceived
		}
		now := clk.Now()
		if timeout > 0 && now.Sub(start) >= timeout {
			return OutcomeTimedOut
		}
		if last, seen := session.LastHeartbeat(); seen && now.Sub(last) > HeartbeatTimeout {
			return OutcomeHeartbeatStale
		}

		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-session.Done():
		case <-clk.After(PollInterval):
		}
	}
}

// HandoffURL returns base with a bridge query parameter naming
// bridgeURL. Existing query parameters on base are kept.
func HandoffURL(base *url.URL, bridgeURL string) string {
	handoff := *base
	query := handoff.Query()
	query.Set("bridge", bridgeURL)
	handoff.RawQuery = query.Encode()
	return handoff.String()
}

func parseAppURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bridge: invalid app URL %q: %w", raw, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("bridge: app URL %q must be an absolute http or https URL", raw)
	}
	return parsed, nil
}
