package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRunContextStopsWorkersAndRunsCleanupsInReverse(t *testing.T) {
	var order []string
	started := make(chan struct{})

	a := NewBuilder("test").
		WithHTTP(&http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}).
		WithWorker("ticker", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}).
		WithCleanup(func() { order = append(order, "db") }).
		WithCleanup(func() { order = append(order, "cache") }).
		WithShutdownTimeout(time.Second).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	if err := a.RunContext(ctx); err != nil {
		t.Fatalf("RunContext: %v", err)
	}
	if strings.Join(order, ",") != "cache,db" {
		t.Fatalf("cleanup order: %v", order)
	}
}

func TestRunContextReturnsWorkerFailure(t *testing.T) {
	boom := errors.New("boom")
	stopped := make(chan struct{})

	a := NewBuilder("test").
		WithWorker("failing", func(context.Context) error { return boom }).
		WithWorker("waiting", func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}).
		Build()

	err := a.RunContext(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected worker error, got %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatal("sibling worker was not stopped")
	}
}
