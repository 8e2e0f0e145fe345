package clock

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func echoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClock_RefreshPopulatesSnapshot(t *testing.T) {
	v4 := echoServer(t, "203.0.113.7")
	v6 := echoServer(t, "2001:db8::1")

	c := New(time.Hour,
		WithLogger(testLogger()),
		WithIPv4Endpoint(v4.URL),
		WithIPv6Endpoint(v6.URL),
	)

	c.refresh(context.Background())

	got := c.Status()
	if got.IPv4 != "203.0.113.7" {
		t.Errorf("IPv4 = %q, want %q", got.IPv4, "203.0.113.7")
	}
	if got.IPv6 != "2001:db8::1" {
		t.Errorf("IPv6 = %q, want %q", got.IPv6, "2001:db8::1")
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestClock_RetainsLastKnownOnFailure(t *testing.T) {
	v4 := echoServer(t, "203.0.113.7")
	v6 := echoServer(t, "2001:db8::1")

	c := New(time.Hour,
		WithLogger(testLogger()),
		WithIPv4Endpoint(v4.URL),
		WithIPv6Endpoint(v6.URL),
	)
	c.refresh(context.Background())

	bad := failingServer(t)
	c.ipv4Endpoint = bad.URL
	c.refresh(context.Background())

	got := c.Status()
	if got.IPv4 != "203.0.113.7" {
		t.Errorf("IPv4 = %q, want last-known %q retained after failure", got.IPv4, "203.0.113.7")
	}
	if got.LastError == nil {
		t.Error("LastError should be set after a failed lookup")
	}
}

func TestClock_StartAndStop(t *testing.T) {
	v4 := echoServer(t, "198.51.100.1")
	v6 := echoServer(t, "2001:db8::2")

	c := New(20*time.Millisecond,
		WithLogger(testLogger()),
		WithIPv4Endpoint(v4.URL),
		WithIPv6Endpoint(v6.URL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	defer c.Stop()

	if got := c.Status(); got.IPv4 != "198.51.100.1" {
		t.Errorf("IPv4 after Start = %q, want %q", got.IPv4, "198.51.100.1")
	}
}
