// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/miniscope/calab/lib/netutil"
)

// loopbackHost is the only address the listener binds.
const loopbackHost = "127.0.0.1"

// defaultShutdownTimeout bounds how long Stop waits for in-flight
// requests.
const defaultShutdownTimeout = 2 * time.Second

// Listener serves a Session's routes over HTTP on the loopback interface.
type Listener struct {
	// Session is the state served and mutated by the routes. Required.
	Session *Session

	// Port is the TCP port to bind on 127.0.0.1. Zero requests an
	// ephemeral port.
	Port int

	// ShutdownTimeout bounds the graceful shutdown in Stop. Defaults to
	// two seconds if zero.
	ShutdownTimeout time.Duration

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-request events are logged at Debug level; lifecycle
	// events at Info.
	Logger *slog.Logger

	listener net.Listener
	server   *http.Server
	done     chan struct{}
	stopOnce sync.Once
}

// logger returns the configured logger or the default.
func (l *Listener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Start binds the loopback port and begins serving in a background
// goroutine. It returns once the socket is bound, so BoundPort and URL
// are valid before the first request arrives. A bind failure is returned
// as is; the listener never retries or picks a different port.
func (l *Listener) Start() error {
	if l.Session == nil {
		return fmt.Errorf("bridge: Session is required")
	}
	if l.Port < 0 || l.Port > 65535 {
		return fmt.Errorf("bridge: port %d out of range", l.Port)
	}
	if l.server != nil {
		return fmt.Errorf("bridge: listener already started")
	}

	handler, err := NewHandler(l.Session, l.logger())
	if err != nil {
		return err
	}

	address := net.JoinHostPort(loopbackHost, strconv.Itoa(l.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("bridge: failed to listen on %s: %w", address, err)
	}

	l.listener = listener
	l.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(l.logger().Handler(), slog.LevelDebug),
	}
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		err := l.server.Serve(listener)
		if err != nil && !netutil.IsExpectedCloseError(err) {
			l.logger().Error("bridge listener stopped unexpectedly", "error", err)
		}
	}()

	l.logger().Info("bridge listener started",
		"session_id", l.Session.ID,
		"address", listener.Addr().String(),
	)
	return nil
}

// Addr returns the bound address, or nil if the listener has not been
// started.
func (l *Listener) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// BoundPort returns the port actually bound, which differs from Port
// when an ephemeral port was requested. It returns zero before Start.
func (l *Listener) BoundPort() int {
	address, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return address.Port
}

// URL returns the base URL the browser tool should call, e.g.
// "http://127.0.0.1:41234".
func (l *Listener) URL() string {
	return "http://" + net.JoinHostPort(loopbackHost, strconv.Itoa(l.BoundPort()))
}

// Stop shuts the server down, waiting up to ShutdownTimeout for
// in-flight requests before closing remaining connections. It is safe to
// call more than once and before Start.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		if l.server == nil {
			return
		}

		timeout := l.ShutdownTimeout
		if timeout == 0 {
			timeout = defaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := l.server.Shutdown(ctx); err != nil {
			l.logger().Warn("bridge listener shutdown incomplete, closing connections", "error", err)
			l.server.Close()
		}
		<-l.done

		l.logger().Info("bridge listener stopped", "session_id", l.Session.ID)
	})
}
