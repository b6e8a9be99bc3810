package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestEntryFromResponse(t *testing.T) {
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	lastMod := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Etag":          []string{`"abc123"`},
			"Expires":       []string{expires.Format(http.TimeFormat)},
			"Last-Modified": []string{lastMod.Format(http.TimeFormat)},
		},
	}
	body := []byte(`{"data": []}`)

	entry := EntryFromResponse(resp, body)

	if string(entry.Body) != string(body) {
		t.Errorf("Body = %s, want %s", entry.Body, body)
	}
	if entry.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want abc123", entry.ETag)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", entry.StatusCode)
	}
	if !entry.Expires.Equal(expires) {
		t.Errorf("Expires = %v, want %v", entry.Expires, expires)
	}
	if !entry.LastModified.Equal(lastMod) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastMod)
	}
}

func TestEntryFromResponse_NoExpiresUsesDefault(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}

	entry := EntryFromResponse(resp, nil)

	ttl := entry.TTL()
	if ttl <= 0 || ttl > DefaultTTL {
		t.Errorf("TTL() = %v, want within default TTL %v", ttl, DefaultTTL)
	}
}

func TestEntryFromResponse_PastExpiresClamped(t *testing.T) {
	past := time.Now().Add(-1 * time.Hour)
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Expires": []string{past.UTC().Format(http.TimeFormat)},
		},
	}

	entry := EntryFromResponse(resp, nil)

	if entry.TTL() > time.Second {
		t.Errorf("TTL() = %v for past expires, want about 0", entry.TTL())
	}
}

func TestCanRevalidate(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, false},
		{"no validators", &Entry{}, false},
		{"etag", &Entry{ETag: `"abc"`}, true},
		{"last modified", &Entry{LastModified: time.Now()}, true},
		{"both", &Entry{ETag: `"abc"`, LastModified: time.Now()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRevalidate(tt.entry); got != tt.want {
				t.Errorf("CanRevalidate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddValidators(t *testing.T) {
	t.Run("etag preferred", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "https://api.example.org/books", nil)
		entry := &Entry{ETag: `"abc"`, LastModified: time.Now()}

		AddValidators(req, entry)

		if got := req.Header.Get("If-None-Match"); got != `"abc"` {
			t.Errorf("If-None-Match = %q, want abc", got)
		}
		if got := req.Header.Get("If-Modified-Since"); got != "" {
			t.Errorf("If-Modified-Since = %q, want unset when ETag present", got)
		}
	})

	t.Run("last modified fallback", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "https://api.example.org/books", nil)
		lastMod := time.Now().Add(-1 * time.Hour)
		entry := &Entry{LastModified: lastMod}

		AddValidators(req, entry)

		if got := req.Header.Get("If-Modified-Since"); got != lastMod.Format(http.TimeFormat) {
			t.Errorf("If-Modified-Since = %q, want %q", got, lastMod.Format(http.TimeFormat))
		}
	})

	t.Run("nil safe", func(t *testing.T) {
		AddValidators(nil, &Entry{ETag: `"abc"`})
		req, _ := http.NewRequest("GET", "https://api.example.org/books", nil)
		AddValidators(req, nil)
		if len(req.Header) != 0 {
			t.Errorf("headers modified for nil entry: %v", req.Header)
		}
	})
}
