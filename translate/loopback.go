package translate

import (
	"context"
	"io"
	"sync"
	"unicode"

	"golang.org/x/text/language"
)

// Loopback is an in-process Detector + Translator for tests and the
// offline file mode. It "translates" by tagging the text with the target
// language and streams the result in fixed-size chunks, which exercises
// the pipeline's streaming, caching, and dedup paths without any network
// (networked translation is out of scope).
type Loopback struct {
	// Source and Target form the only available pair.
	Source, Target language.Tag
	// ChunkSize is the streamed chunk length in runes. Default: 16.
	ChunkSize int
	// DetectAs overrides detection for every input. Zero value means
	// "detect Source for Latin-script text, und otherwise".
	DetectAs language.Tag
}

// Detect reports the best-guess language of text.
func (l *Loopback) Detect(_ context.Context, text string) (language.Tag, error) {
	if l.DetectAs != (language.Tag{}) {
		return l.DetectAs, nil
	}
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.In(r, unicode.Latin) {
			return language.Und, nil
		}
	}
	return l.Source, nil
}

// Availability reports Available only for the configured pair.
func (l *Loopback) Availability(_ context.Context, src, tgt language.Tag) (Availability, error) {
	if src == l.Source && tgt == l.Target {
		return Available, nil
	}
	return Unavailable, nil
}

// NewSession creates a loopback session.
func (l *Loopback) NewSession(_ context.Context, src, tgt language.Tag) (Session, error) {
	size := l.ChunkSize
	if size <= 0 {
		size = 16
	}
	return &loopbackSession{tgt: tgt, chunkSize: size}, nil
}

type loopbackSession struct {
	tgt       language.Tag
	chunkSize int

	mu     sync.Mutex
	closed bool
}

func (s *loopbackSession) TranslateStreaming(_ context.Context, text string) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, io.ErrClosedPipe
	}
	out := "⟦" + s.tgt.String() + "⟧ " + text
	return &runeStream{runes: []rune(out), size: s.chunkSize}, nil
}

func (s *loopbackSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// runeStream yields the prepared text in chunkSize rune slices.
type runeStream struct {
	runes []rune
	size  int
	pos   int
}

func (r *runeStream) Next() (string, error) {
	if r.pos >= len(r.runes) {
		return "", io.EOF
	}
	end := r.pos + r.size
	if end > len(r.runes) {
		end = len(r.runes)
	}
	chunk := string(r.runes[r.pos:end])
	r.pos = end
	return chunk, nil
}
