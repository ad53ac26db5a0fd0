package gloss

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/hazyhaar/domgloss/dom"
	"github.com/hazyhaar/domgloss/translate"
)

// testConfig returns a config with delays shrunk for tests. The linger is
// long so progress does not reset underneath assertions.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tuning.VisibleDelay = time.Millisecond
	cfg.Tuning.BackgroundDelay = time.Millisecond
	cfg.Tuning.RescanDelay = time.Millisecond
	cfg.Tuning.DebounceWindow = 20 * time.Millisecond
	cfg.Tuning.Linger = time.Hour
	return cfg
}

func testDoc(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString("<html><body>"+body+"</body></html>", "https://example.test/")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newTestPipeline(t *testing.T, doc *dom.Document, det translate.Detector, tr translate.Translator, cfg *Config) *Pipeline {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := New(cfg, doc, det, tr, logger)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func loopbackPair() *translate.Loopback {
	return &translate.Loopback{Source: language.English, Target: language.Japanese, ChunkSize: 6}
}

// countAnnotations walks the whole tree.
func countAnnotations(d *dom.Document) int {
	count := 0
	d.View(func(root *html.Node) {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && dom.IsAnnotation(n) {
				count++
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	})
	return count
}

// annotationTexts returns trimmed annotation texts in document order.
func annotationTexts(d *dom.Document) []string {
	var out []string
	d.View(func(root *html.Node) {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && dom.IsAnnotation(n) {
				out = append(out, strings.TrimSpace(dom.Text(n)))
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(root)
	})
	return out
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// --- scripted capability fakes ---

// fixedDetector always reports one language and can invoke a hook per call.
type fixedDetector struct {
	tag      language.Tag
	err      error
	onDetect func()
	calls    atomic.Int32
}

func (d *fixedDetector) Detect(_ context.Context, _ string) (language.Tag, error) {
	d.calls.Add(1)
	if d.onDetect != nil {
		d.onDetect()
	}
	if d.err != nil {
		return language.Und, d.err
	}
	return d.tag, nil
}

// scriptTranslator scripts availability, session counting, and mid-stream
// failures.
type scriptTranslator struct {
	avail       translate.Availability
	failAfter   int // error after this many chunks; 0 means never
	streamCalls atomic.Int32
	sessions    atomic.Int32
}

func (s *scriptTranslator) Availability(_ context.Context, _, _ language.Tag) (translate.Availability, error) {
	return s.avail, nil
}

func (s *scriptTranslator) NewSession(_ context.Context, _, tgt language.Tag) (translate.Session, error) {
	s.sessions.Add(1)
	return &scriptSession{parent: s, tgt: tgt}, nil
}

type scriptSession struct {
	parent *scriptTranslator
	tgt    language.Tag
}

func (s *scriptSession) TranslateStreaming(_ context.Context, text string) (translate.Stream, error) {
	s.parent.streamCalls.Add(1)
	return &scriptStream{text: []rune("⟦" + s.tgt.String() + "⟧ " + text), failAfter: s.parent.failAfter}, nil
}

func (s *scriptSession) Close() error { return nil }

type scriptStream struct {
	text      []rune
	failAfter int
	served    int
}

func (s *scriptStream) Next() (string, error) {
	if s.failAfter > 0 && s.served >= s.failAfter {
		return "", errors.New("stream torn down")
	}
	if len(s.text) == 0 {
		return "", io.EOF
	}
	n := 8
	if n > len(s.text) {
		n = len(s.text)
	}
	chunk := string(s.text[:n])
	s.text = s.text[n:]
	s.served++
	return chunk, nil
}
