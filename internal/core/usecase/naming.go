package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

const anonymousIdentity = "anonymous"

// ArtifactNamer builds object keys. Classified keys carry a unix-nanosecond
// timestamp that is strictly increasing across the process.
type ArtifactNamer struct {
	now  func() time.Time
	last atomic.Int64
}

func NewArtifactNamer(now func() time.Time) *ArtifactNamer {
	if now == nil {
		now = time.Now
	}
	return &ArtifactNamer{now: now}
}

// IncomingKey is {identity}/{filename}.
func (n *ArtifactNamer) IncomingKey(identity, filename string) string {
	return sanitizeIdentity(identity) + "/" + sanitizeFilename(filename)
}

// ClassifiedKey is {category}_{unixTimestamp}.txt.
func (n *ArtifactNamer) ClassifiedKey(category string) string {
	return fmt.Sprintf("%s_%d.txt", sanitizeSegment(category, "unknown"), n.nextStamp())
}

func (n *ArtifactNamer) nextStamp() int64 {
	for {
		prev := n.last.Load()
		stamp := n.now().UnixNano()
		if stamp <= prev {
			stamp = prev + 1
		}
		if n.last.CompareAndSwap(prev, stamp) {
			return stamp
		}
	}
}

// SplitIncomingKey reverses IncomingKey for the rebuild sweep.
func SplitIncomingKey(key string) (identity, filename string) {
	identity, filename, ok := strings.Cut(key, "/")
	if !ok {
		return anonymousIdentity, key
	}
	return identity, filename
}

func sanitizeIdentity(identity string) string {
	return sanitizeSegment(identity, anonymousIdentity)
}

func sanitizeSegment(v, fallback string) string {
	v = strings.TrimSpace(v)
	v = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.', r == '-', r == '_', r == '@':
			return r
		default:
			return '_'
		}
	}, v)
	v = strings.Trim(v, ".")
	if v == "" {
		return fallback
	}
	return v
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
