// Package translate defines the external translation and language
// detection capabilities the domgloss pipeline orchestrates, and a session
// cache that reuses live translation sessions across elements.
//
// The pipeline never translates anything itself: hosts provide a Detector
// and a Translator (the browser host exposes the page's built-in engine;
// tests and the offline file mode use Loopback).
package translate

import (
	"context"
	"errors"

	"golang.org/x/text/language"
)

var (
	// ErrDetectUnavailable means the host has no language detection
	// capability at all. Surfaced once per triggering call, not retried.
	ErrDetectUnavailable = errors.New("translate: language detection unavailable")

	// ErrUnsupportedPair means the host cannot translate between the
	// requested languages. Rendered as a fixed user-visible message,
	// never an exception path.
	ErrUnsupportedPair = errors.New("translate: language pair not supported")
)

// Availability is the host's answer for a language pair.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

// Detector identifies the language of a text. Implementations return the
// first-ranked guess of the host's candidate list.
type Detector interface {
	Detect(ctx context.Context, text string) (language.Tag, error)
}

// Translator creates translation sessions for language pairs.
type Translator interface {
	// Availability reports whether the pair can be translated. Must be
	// checked before NewSession.
	Availability(ctx context.Context, src, tgt language.Tag) (Availability, error)
	// NewSession creates a live session for the pair. Sessions are
	// expensive; callers reuse them through a Cache.
	NewSession(ctx context.Context, src, tgt language.Tag) (Session, error)
}

// Session is a live translation handle for one language pair.
type Session interface {
	// TranslateStreaming translates text and delivers the result as a
	// finite, ordered, non-restartable sequence of chunks.
	TranslateStreaming(ctx context.Context, text string) (Stream, error)
	Close() error
}

// Stream yields translation chunks. Next returns io.EOF after the final
// chunk. Chunks are increments; the consumer accumulates them.
type Stream interface {
	Next() (string, error)
}
