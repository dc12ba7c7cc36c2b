package cache

import (
	"fmt"
	"strings"
)

// Serializer converts a caller payload into the bytes stored on disk,
// parameterized by key. It runs without the cache lock held.
type Serializer func(value []byte, key string) ([]byte, error)

// Deserializer reverses a Serializer. A returned error marks the stored file
// as corrupt: the cache dooms the file and surfaces the error.
type Deserializer func(data []byte, key string) ([]byte, error)

// KeyEncoder maps a cache key to a filesystem-safe filename.
type KeyEncoder func(key string) string

// KeyDecoder reverses a KeyEncoder.
type KeyDecoder func(filename string) (string, error)

// DefaultSerializer stores payload bytes verbatim.
func DefaultSerializer(value []byte, _ string) ([]byte, error) {
	return value, nil
}

// DefaultDeserializer returns stored bytes verbatim.
func DefaultDeserializer(data []byte, _ string) ([]byte, error) {
	return data, nil
}

// DefaultKeyEncoder percent-encodes every byte outside ASCII letters and
// digits, so any key maps to a flat, filesystem-safe filename. The empty key
// encodes to the empty string.
func DefaultKeyEncoder(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if isAlphanumeric(ch) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", ch)
	}
	return b.String()
}

// DefaultKeyDecoder reverses DefaultKeyEncoder's percent-encoding.
func DefaultKeyDecoder(filename string) (string, error) {
	var b strings.Builder
	b.Grow(len(filename))
	for i := 0; i < len(filename); i++ {
		ch := filename[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		if i+2 >= len(filename) {
			return "", fmt.Errorf("truncated percent escape in %q", filename)
		}
		hi, ok1 := unhex(filename[i+1])
		lo, ok2 := unhex(filename[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid percent escape in %q", filename)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func isAlphanumeric(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func unhex(ch byte) (byte, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', true
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, true
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, true
	}
	return 0, false
}
