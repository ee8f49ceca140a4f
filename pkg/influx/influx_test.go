package influx

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestLogRunWritesThreeSeries(t *testing.T) {
	var body, db, precision string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/write" {
			t.Errorf("path = %s", r.URL.Path)
		}
		db = r.URL.Query().Get("db")
		precision = r.URL.Query().Get("precision")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	sink, err := New(Config{Host: host, Port: port, Database: "extractor_db", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer sink.Close()

	start := time.Date(2017, 4, 27, 10, 0, 0, 0, time.UTC)
	err = sink.LogRun(context.Background(), Run{
		Extractor: "terra.stereo-rgb.bin2tif",
		Start:     start,
		End:       start.Add(42 * time.Second),
		Created:   4,
		Bytes:     1024,
	})
	if err != nil {
		t.Fatalf("LogRun returned error: %v", err)
	}

	if db != "extractor_db" || precision != "s" {
		t.Fatalf("db=%q precision=%q", db, precision)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 points, got %d: %q", len(lines), body)
	}
	for _, want := range []string{"type=duration value=42i", "type=filecount value=4i", "type=bytes value=1024i"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body %q", want, body)
		}
	}
	if !strings.HasPrefix(lines[0], "file_processed,extractor=terra.stereo-rgb.bin2tif") {
		t.Errorf("unexpected first line %q", lines[0])
	}
}

func TestLogRunHonoursCancelledContext(t *testing.T) {
	sink, err := New(Config{Host: "127.0.0.1", Port: 1, Database: "x"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.LogRun(ctx, Run{}); err == nil {
		t.Fatal("expected cancelled context error")
	}
}
