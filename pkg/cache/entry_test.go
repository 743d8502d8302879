package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestCacheEntry_FromVendorResponse(t *testing.T) {
	tests := []struct {
		name        string
		header      http.Header
		contentType string
		wantMin     time.Duration
		wantMax     time.Duration
	}{
		{
			name:        "profile page with max-age",
			header:      http.Header{"Content-Type": {"text/html; charset=utf-8"}, "Cache-Control": {"public, max-age=120"}},
			contentType: "text/html; charset=utf-8",
			wantMin:     119 * time.Second,
			wantMax:     120 * time.Second,
		},
		{
			name:        "product page without caching headers",
			header:      http.Header{"Content-Type": {"application/json"}},
			contentType: "application/json",
			wantMin:     4*time.Minute + 59*time.Second,
			wantMax:     5 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := ResponseToEntry(http.StatusOK, tt.header, []byte("body"), 5*time.Minute)
			if !ok {
				t.Fatal("response should be cacheable")
			}
			if entry.ContentType != tt.contentType {
				t.Errorf("ContentType = %q, want %q", entry.ContentType, tt.contentType)
			}
			if entry.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d", entry.StatusCode)
			}
			if entry.IsExpired() {
				t.Error("fresh entry reported expired")
			}
			if ttl := entry.TTL(); ttl < tt.wantMin || ttl > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", ttl, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestCacheEntry_ExpiredEntryHasNoTTL(t *testing.T) {
	entry := &CacheEntry{
		Data:     []byte(`{"products":[]}`),
		Expires:  time.Now().Add(-time.Second),
		CachedAt: time.Now().Add(-time.Minute),
	}
	if !entry.IsExpired() {
		t.Error("entry past Expires should be expired")
	}
	if ttl := entry.TTL(); ttl != 0 {
		t.Errorf("TTL() = %v, want 0", ttl)
	}
}

func TestCacheEntry_BodyIsCopied(t *testing.T) {
	body := []byte("<html>vendor</html>")
	entry, ok := ResponseToEntry(http.StatusOK, http.Header{}, body, time.Minute)
	if !ok {
		t.Fatal("response should be cacheable")
	}
	body[0] = 'X'
	if string(entry.Data) != "<html>vendor</html>" {
		t.Errorf("entry shares the caller's buffer: %q", entry.Data)
	}
}
