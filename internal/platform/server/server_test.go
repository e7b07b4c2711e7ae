package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/ogurasousui/employee-registry/internal/platform/config"
	"github.com/sirupsen/logrus/hooks/test"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	srv := New(config.ServerConfig{
		ListenAddr:         "127.0.0.1:0",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}, okHandler(), logger)

	req := httptest.NewRequest(http.MethodOptions, "/api/employees", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/employees", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for unknown origin, got %q", got)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	logger, _ := test.NewNullLogger()
	srv := New(config.ServerConfig{
		ListenAddr:      lis.Addr().String(),
		ShutdownTimeout: time.Second,
	}, okHandler(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, lis)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/", lis.Addr().String()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body: %q", body)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// 並列テストと混ざらないよう t.Parallel は付けません。
func TestServer_ServeFailureReleasesShutdownWatcher(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_ = lis.Close()

	logger, _ := test.NewNullLogger()
	srv := New(config.ServerConfig{ListenAddr: lis.Addr().String()}, okHandler(), logger)

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Serve(ctx, lis); err == nil {
		t.Fatal("expected Serve to fail on a closed listener")
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("shutdown watcher still running: %d goroutines, want %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
