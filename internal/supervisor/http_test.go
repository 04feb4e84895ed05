// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// stubServer blocks in ListenAndServe until Shutdown or a forced error.
type stubServer struct {
	startErr error
	closed   chan struct{}
	shutdown bool
}

func newStubServer() *stubServer {
	return &stubServer{closed: make(chan struct{})}
}

func (s *stubServer) ListenAndServe() error {
	if s.startErr != nil {
		return s.startErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(_ context.Context) error {
	s.shutdown = true
	close(s.closed)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newStubServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if !srv.shutdown {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPServiceReportsStartFailure(t *testing.T) {
	srv := newStubServer()
	srv.startErr = errors.New("address in use")
	svc := NewHTTPService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.startErr) {
		t.Errorf("Serve returned %v, want wrapped start error", err)
	}
}

func TestHTTPServiceName(t *testing.T) {
	if got := NewHTTPService(newStubServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}
