// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewClientURLForms(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"http://127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"http://127.0.0.1:5000/", "http://127.0.0.1:5000"},
		{DefaultAppURL + "?bridge=http%3A%2F%2F127.0.0.1%3A6000", "http://127.0.0.1:6000"},
		{"https://example.org/CaTune/?bridge=http://127.0.0.1:7000", "http://127.0.0.1:7000"},
	}
	for _, test := range tests {
		client, err := NewClient(test.input)
		if err != nil {
			t.Fatalf("NewClient(%q): %v", test.input, err)
		}
		if client.BaseURL() != test.want {
			t.Errorf("NewClient(%q).BaseURL() = %q, want %q", test.input, client.BaseURL(), test.want)
		}
	}

	for _, invalid := range []string{"", "127.0.0.1:5000", "https://127.0.0.1:5000", "ftp://host/"} {
		if _, err := NewClient(invalid); err == nil {
			t.Errorf("NewClient(%q) succeeded", invalid)
		}
	}
}

func TestClientAgainstHandler(t *testing.T) {
	session, err := NewSession(mat.NewDense(2, 2, []float64{1, 2, 3, 4}), 15, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	server := httptest.NewServer(newTestHandler(t, session))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Ready || status.App != AppName {
		t.Fatalf("status = %+v", status)
	}

	traces, err := client.Traces(ctx)
	if err != nil {
		t.Fatalf("Traces: %v", err)
	}
	if !mat.Equal(traces, session.Traces()) {
		t.Fatal("traces differ")
	}

	// A non-object payload is rejected by the bridge.
	err = client.SendParams(ctx, []float64{1, 2})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadRequest {
		t.Fatalf("SendParams(array) error = %v, want a 400 StatusError", err)
	}
	if session.Completed() {
		t.Fatal("rejected params set the latch")
	}
}

func TestClientReportsUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.Health(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Health error = %v, want StatusError", err)
	}
	if statusErr.Code != http.StatusNotFound || statusErr.Path != PathHealth {
		t.Fatalf("StatusError = %+v", statusErr)
	}
}

func TestClientRejectsWrongHealthBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("degraded"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error for a non-ok health body")
	}
}
