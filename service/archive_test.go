package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/AnTengye/creditreport/config"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		name     string
		original string
		expected string
	}{
		{"plain", "jane.xml", "reports/id-1/jane.xml"},
		{"unix path", "/tmp/uploads/jane.xml", "reports/id-1/jane.xml"},
		{"windows path", `C:\Users\jane\report.xml`, "reports/id-1/report.xml"},
		{"empty", "", "reports/id-1/report.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ObjectName("id-1", tt.original)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

// newFakeS3 serves PUT and DELETE object requests with the given status
func newFakeS3(t *testing.T, status int, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		io.Copy(io.Discard, r.Body)
		if status != http.StatusOK && status != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestArchive(t *testing.T, endpoint string) *ArchiveService {
	t.Helper()
	svc, err := NewArchiveService(&config.MinioConfig{
		Endpoint:   endpoint,
		AccessKey:  "test",
		SecretKey:  "testsecret",
		Bucket:     "credit-reports",
		Region:     "us-east-1",
		ExpireDays: 30,
	})
	if err != nil {
		t.Fatalf("NewArchiveService failed: %v", err)
	}
	return svc
}

func TestArchivePutAndRemove(t *testing.T) {
	var hits int32
	server := newFakeS3(t, http.StatusOK, &hits)
	svc := newTestArchive(t, strings.TrimPrefix(server.URL, "http://"))
	ctx := context.Background()

	if err := svc.Put(ctx, "reports/1/jane.xml", []byte("<a/>"), "application/xml"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := svc.Remove(ctx, "reports/1/jane.xml"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("Expected 2 requests, got %d", hits)
	}
}

func TestArchiveBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	server := newFakeS3(t, http.StatusForbidden, &hits)
	svc := newTestArchive(t, strings.TrimPrefix(server.URL, "http://"))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := svc.Put(ctx, "reports/1/jane.xml", []byte("<a/>"), "application/xml")
		if err == nil {
			t.Fatalf("Call %d: expected error", i)
		}
		if errors.Is(err, ErrArchiveUnavailable) {
			t.Fatalf("Call %d: breaker opened too early", i)
		}
	}

	err := svc.Put(ctx, "reports/1/jane.xml", []byte("<a/>"), "application/xml")
	if !errors.Is(err, ErrArchiveUnavailable) {
		t.Errorf("Expected ErrArchiveUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 5 {
		t.Errorf("Expected open breaker to short-circuit, got %d requests", hits)
	}
}

func TestArchivePresignedURL(t *testing.T) {
	svc := newTestArchive(t, "minio.example.com:9000")

	u, err := svc.PresignedURL(context.Background(), "reports/1/jane.xml")
	if err != nil {
		t.Fatalf("PresignedURL failed: %v", err)
	}
	if !strings.HasPrefix(u, "http://minio.example.com:9000/credit-reports/reports/1/jane.xml?") {
		t.Errorf("Unexpected URL: %s", u)
	}
	// 30 configured days are capped at one week
	if !strings.Contains(u, "X-Amz-Expires=604800") {
		t.Errorf("Expected one-week expiry, got %s", u)
	}
}
