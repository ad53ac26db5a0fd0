package translate

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/text/language"
)

func TestLoopback_StreamAccumulates(t *testing.T) {
	lb := &Loopback{Source: language.English, Target: language.Japanese, ChunkSize: 4}
	sess, err := lb.NewSession(context.Background(), language.English, language.Japanese)
	if err != nil {
		t.Fatal(err)
	}

	stream, err := sess.TranslateStreaming(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	chunks := 0
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		chunks++
		sb.WriteString(chunk)
	}

	got := sb.String()
	if !strings.HasSuffix(got, "hello world") {
		t.Fatalf("accumulated = %q", got)
	}
	if !strings.Contains(got, "ja") {
		t.Fatalf("missing target tag: %q", got)
	}
	if chunks < 2 {
		t.Fatalf("chunks = %d, want streaming in multiple chunks", chunks)
	}
}

func TestLoopback_DetectNonLatin(t *testing.T) {
	lb := &Loopback{Source: language.English, Target: language.Japanese}
	tag, err := lb.Detect(context.Background(), "こんにちは")
	if err != nil {
		t.Fatal(err)
	}
	if tag != language.Und {
		t.Fatalf("tag = %v, want und", tag)
	}

	tag, err = lb.Detect(context.Background(), "plain english text")
	if err != nil {
		t.Fatal(err)
	}
	if tag != language.English {
		t.Fatalf("tag = %v, want en", tag)
	}
}

// countingTranslator wraps Loopback and counts session creations.
type countingTranslator struct {
	Loopback
	created atomic.Int32
}

func (c *countingTranslator) NewSession(ctx context.Context, src, tgt language.Tag) (Session, error) {
	c.created.Add(1)
	return c.Loopback.NewSession(ctx, src, tgt)
}

func TestCache_ReusesSessions(t *testing.T) {
	tr := &countingTranslator{Loopback: Loopback{Source: language.English, Target: language.Japanese}}
	cache := NewCache(tr)
	defer cache.Close()

	ctx := context.Background()
	s1, err := cache.Get(ctx, language.English, language.Japanese)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := cache.Get(ctx, language.English, language.Japanese)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Fatal("expected the same session instance")
	}
	if got := tr.created.Load(); got != 1 {
		t.Fatalf("sessions created = %d, want 1", got)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", cache.Len())
	}
}

func TestCache_UnsupportedPair(t *testing.T) {
	tr := &countingTranslator{Loopback: Loopback{Source: language.English, Target: language.Japanese}}
	cache := NewCache(tr)
	defer cache.Close()

	_, err := cache.Get(context.Background(), language.French, language.Japanese)
	if err != ErrUnsupportedPair {
		t.Fatalf("err = %v, want ErrUnsupportedPair", err)
	}
	if got := tr.created.Load(); got != 0 {
		t.Fatalf("sessions created = %d, want 0 for unavailable pair", got)
	}
}
