// Package gloss implements the incremental content translation pipeline:
// it discovers translatable text on a live, possibly mutating document,
// and produces an inline, streamed, duplicate-free translation beneath
// each qualifying block without blocking the page.
//
// The pipeline owns all of its state explicitly: the enabled flag, the
// dynamic-site classification, the progress record, and the session cache
// all live on the Pipeline instance. The external translation and
// detection primitives are injected (see package translate); the document
// is injected as a dom.Document, fed either from a parsed snapshot or a
// live browser host.
package gloss

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"github.com/hazyhaar/domgloss/dom"
	"github.com/hazyhaar/domgloss/idgen"
	"github.com/hazyhaar/domgloss/observability"
	"github.com/hazyhaar/domgloss/translate"
)

// Pipeline is the orchestrator. Create one per document with New.
type Pipeline struct {
	cfg      *Config
	doc      *dom.Document
	detector translate.Detector
	cache    *translate.Cache
	progress *tracker
	watch    *watcher
	logger   *slog.Logger

	source, target language.Tag
	blockRe        *regexp.Regexp
	sanitizer      *bluemonday.Policy
	newID          idgen.Generator
	metrics        *observability.Metrics

	// enabled is read by every scheduling loop at batch boundaries and
	// written only by SetEnabled/Cancel.
	enabled atomic.Bool
	// dynamic is the rolling dynamic-site classification, owned by the
	// change watcher.
	dynamic atomic.Bool

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches an observability metrics manager.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithIDGenerator overrides the run-ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// New creates a Pipeline over a document and the host's translation
// capabilities. The pipeline starts disabled; call SetEnabled or Start
// with a persisted preference.
func New(cfg *Config, doc *dom.Document, det translate.Detector, tr translate.Translator, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	if logger == nil {
		logger = slog.Default()
	}

	src, err := language.Parse(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("gloss: source language %q: %w", cfg.Source, err)
	}
	tgt, err := language.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("gloss: target language %q: %w", cfg.Target, err)
	}

	blockRe, err := regexp.Compile(`(?i)(` + strings.Join(cfg.Blocklist, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("gloss: blocklist: %w", err)
	}

	p := &Pipeline{
		cfg:       cfg,
		doc:       doc,
		detector:  det,
		cache:     translate.NewCache(tr),
		progress:  newTracker(cfg.Tuning.Linger),
		logger:    logger,
		source:    src,
		target:    tgt,
		blockRe:   blockRe,
		sanitizer: bluemonday.StrictPolicy(),
		newID:     idgen.Prefixed("run_", idgen.Default),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.watch = newWatcher(p)
	return p, nil
}

// Start launches the change watcher and, when enabled is true (the
// persisted preference), an initial prioritized pass. It returns
// immediately; Stop tears everything down.
func (p *Pipeline) Start(ctx context.Context, enabled bool) {
	p.startOnce.Do(func() {
		p.runCtx, p.runCancel = context.WithCancel(ctx)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.watch.run(p.runCtx)
		}()
		if enabled {
			p.enabled.Store(true)
			p.launchInitialPass(p.runCtx)
		}
	})
}

// Stop cancels all running passes, waits for them, and closes the session
// cache. The document keeps whatever annotations were completed.
func (p *Pipeline) Stop() {
	p.enabled.Store(false)
	if p.runCancel != nil {
		p.runCancel()
	}
	p.wg.Wait()
	p.cache.Close()
}

// Enabled reports the pipeline's activity flag.
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

// SetEnabled flips pipeline activity: enabling launches a fresh
// prioritized pass; disabling lets in-flight batches finish, starts no new
// ones, and tears the progress indicator down after the linger.
func (p *Pipeline) SetEnabled(enabled bool) {
	was := p.enabled.Swap(enabled)
	if enabled == was {
		return
	}
	if enabled {
		p.logger.Info("gloss: enabled")
		if p.runCtx != nil {
			p.launchInitialPass(p.runCtx)
		}
	} else {
		p.logger.Info("gloss: disabled")
		p.progress.teardown()
	}
}

// Cancel is the user-facing cancel action: it disables the pipeline and
// tears down the progress indicator after a short delay.
func (p *Pipeline) Cancel() {
	p.SetEnabled(false)
}

// Progress returns the aggregate progress record.
func (p *Pipeline) Progress() ProgressState {
	return p.progress.snapshot()
}

// Dynamic reports the current dynamic-site classification.
func (p *Pipeline) Dynamic() bool {
	return p.dynamic.Load()
}

// Translate runs one full pass synchronously: select, schedule, translate.
// Used by the offline file mode and anywhere a blocking run is wanted.
func (p *Pipeline) Translate(ctx context.Context) error {
	if !p.enabled.Load() {
		p.enabled.Store(true)
	}
	var candidates []*html.Node
	p.doc.View(func(root *html.Node) {
		candidates = p.selectCandidates(root)
	})
	if len(candidates) == 0 {
		p.logger.Info("gloss: nothing to translate")
		return nil
	}
	p.runPass(ctx, candidates)
	return ctx.Err()
}

// launchInitialPass selects candidates and schedules them in the
// background, visible-first.
func (p *Pipeline) launchInitialPass(ctx context.Context) {
	var candidates []*html.Node
	p.doc.View(func(root *html.Node) {
		candidates = p.selectCandidates(root)
	})
	if len(candidates) == 0 {
		return
	}
	p.spawnPass(func(ctx context.Context) {
		p.runPass(ctx, candidates)
	}, ctx)
}

// spawnPass runs fn on its own goroutine, tracked for Stop.
func (p *Pipeline) spawnPass(fn func(context.Context), ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn(ctx)
	}()
}
