// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/miniscope/calab/lib/clock"
)

// Session is the state shared by the listener's request handlers and the
// handoff wait loop for a single tuning handoff.
//
// The traces and sampling rate are fixed at construction. The exported
// configuration, the completion latch, and the heartbeat timestamp are
// written by handlers and read by the wait loop; all access goes through
// methods that hold mu or use the latch channel.
type Session struct {
	// ID identifies the session in log output.
	ID string

	traces       *mat.Dense
	samplingRate float64
	clock        clock.Clock

	mu            sync.Mutex
	exported      map[string]any
	lastHeartbeat time.Time
	heartbeatSeen bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession validates its inputs and returns a session holding a private
// copy of traces. A [mat.Vector] is treated as a single trace and becomes
// a one-row matrix; any other matrix is read as cells × timepoints.
func NewSession(traces mat.Matrix, samplingRate float64, clk clock.Clock) (*Session, error) {
	if traces == nil {
		return nil, fmt.Errorf("bridge: traces are required")
	}
	if !(samplingRate > 0) || math.IsInf(samplingRate, 0) {
		return nil, fmt.Errorf("bridge: sampling rate must be a positive finite number, got %v", samplingRate)
	}
	if clk == nil {
		clk = clock.Real()
	}

	var matrix *mat.Dense
	if vector, ok := traces.(mat.Vector); ok {
		length := vector.Len()
		if length < 1 {
			return nil, fmt.Errorf("bridge: traces are empty")
		}
		row := make([]float64, length)
		for i := range row {
			row[i] = vector.AtVec(i)
		}
		matrix = mat.NewDense(1, length, row)
	} else {
		rows, cols := traces.Dims()
		if rows < 1 || cols < 1 {
			return nil, fmt.Errorf("bridge: traces must have at least one cell and one timepoint, got %d×%d", rows, cols)
		}
		matrix = mat.DenseCopyOf(traces)
	}

	return &Session{
		ID:           uuid.NewString(),
		traces:       matrix,
		samplingRate: samplingRate,
		clock:        clk,
		done:         make(chan struct{}),
	}, nil
}

// SingleTrace wraps one sequence of samples as a one-row matrix. The
// values are copied.
func SingleTrace(values []float64) *mat.Dense {
	if len(values) == 0 {
		return &mat.Dense{}
	}
	row := make([]float64, len(values))
	copy(row, values)
	return mat.NewDense(1, len(row), row)
}

// Traces returns the session's matrix. Callers must not modify it.
func (s *Session) Traces() mat.Matrix { return s.traces }

// SamplingRate returns the sampling rate in Hz.
func (s *Session) SamplingRate() float64 { return s.samplingRate }

// Dims returns the number of cells and timepoints.
func (s *Session) Dims() (cells, timepoints int) { return s.traces.Dims() }

// Heartbeat records a liveness signal from the browser tool and returns
// the stored timestamp. The stored value never moves backwards, even when
// concurrent heartbeats read the clock out of order.
func (s *Session) Heartbeat() time.Time {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.heartbeatSeen || now.After(s.lastHeartbeat) {
		s.lastHeartbeat = now
	}
	s.heartbeatSeen = true
	return s.lastHeartbeat
}

// LastHeartbeat returns the most recent heartbeat time. The boolean is
// false until the first heartbeat arrives.
func (s *Session) LastHeartbeat() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat, s.heartbeatSeen
}

// Complete stores the exported configuration and sets the completion
// latch. Only the first payload is kept; Complete reports whether this
// call stored it.
func (s *Session) Complete(payload map[string]any) bool {
	stored := false
	s.mu.Lock()
	if s.exported == nil {
		s.exported = payload
		stored = true
	}
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	return stored
}

// Completed reports whether the completion latch is set, without blocking.
func (s *Session) Completed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the exported configuration
// has been received.
func (s *Session) Done() <-chan struct{} { return s.done }

// Exported returns the stored configuration payload, or nil before
// completion.
func (s *Session) Exported() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exported
}
