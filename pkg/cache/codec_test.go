package cache

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultKeyEncoderRoundTrip(t *testing.T) {
	keys := []string{
		"",
		"simple",
		"UPPER123",
		"with space",
		"dots.and:colons/slashes",
		"percent%sign",
		"unicode-héllo-世界",
		"../../etc/passwd",
		strings.Repeat("x", 200),
	}

	for _, key := range keys {
		encoded := DefaultKeyEncoder(key)
		decoded, err := DefaultKeyDecoder(encoded)
		if err != nil {
			t.Errorf("decode(encode(%q)) failed: %v", key, err)
			continue
		}
		if decoded != key {
			t.Errorf("decode(encode(%q)) = %q", key, decoded)
		}
	}
}

func TestDefaultKeyEncoderIsFilesystemSafe(t *testing.T) {
	for _, key := range []string{"a/b", "..", ".hidden", "per%cent", "col:on"} {
		encoded := DefaultKeyEncoder(key)
		if strings.ContainsAny(encoded, "/.:") {
			t.Errorf("encode(%q) = %q contains unsafe characters", key, encoded)
		}
	}
}

func TestDefaultKeyEncoderEmptyKey(t *testing.T) {
	if got := DefaultKeyEncoder(""); got != "" {
		t.Errorf("encode(\"\") = %q, want empty string", got)
	}
}

func TestDefaultKeyEncoderSpecificEscapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "abc"},
		{"a.b", "a%2Eb"},
		{"a:b", "a%3Ab"},
		{"a/b", "a%2Fb"},
		{"a%b", "a%25b"},
	}

	for _, tt := range tests {
		if got := DefaultKeyEncoder(tt.in); got != tt.want {
			t.Errorf("encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultKeyDecoderRejectsMalformed(t *testing.T) {
	for _, in := range []string{"%", "%2", "%ZZ", "abc%"} {
		if _, err := DefaultKeyDecoder(in); err == nil {
			t.Errorf("decode(%q) should fail", in)
		}
	}
}

func TestDefaultPayloadCodecIdentity(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFF}

	data, err := DefaultSerializer(payload, "k")
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, err := DefaultDeserializer(data, "k")
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if string(back) != string(payload) {
		t.Errorf("round trip = %v, want %v", back, payload)
	}
}

func TestIndexSortOrders(t *testing.T) {
	c := newTestCache(t, nil)
	waitKnownState(t, c)

	sizes := map[string]int{"small": 10, "medium": 100, "large": 1000}
	for key, size := range sizes {
		if err := c.Set(key, make([]byte, size)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	c.mu.Lock()
	bySize := c.keysSortedBySizeDesc()
	c.mu.Unlock()

	if bySize[0] != "large" || bySize[2] != "small" {
		t.Errorf("size order = %v, want large..small", bySize)
	}

	backdate(c, "medium", time.Now().Add(-time.Hour))
	backdate(c, "large", time.Now().Add(-30*time.Minute))

	c.mu.Lock()
	byDate := c.keysSortedByDateAsc()
	c.mu.Unlock()

	if byDate[0] != "medium" || byDate[2] != "small" {
		t.Errorf("date order = %v, want medium, large, small", byDate)
	}
}
