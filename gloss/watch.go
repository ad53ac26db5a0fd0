package gloss

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domgloss/dom"
)

// watcher keeps translation coverage consistent while the document mutates
// underneath the pipeline: it coalesces mutation bursts into single
// re-scans, classifies the page static or dynamic over a rolling window,
// treats URL changes as full resets, and lazily submits far-from-viewport
// elements once they scroll near.
type watcher struct {
	p      *Pipeline
	events <-chan dom.Event

	// Rolling dynamic-site counters, reset every DynamicWindow.
	mutations int
	inserted  int

	// lazy holds elements deferred until the viewport reaches them.
	lazy map[*html.Node]struct{}
}

func newWatcher(p *Pipeline) *watcher {
	return &watcher{
		p:      p,
		events: p.doc.Subscribe(0),
		lazy:   make(map[*html.Node]struct{}),
	}
}

// run is the watcher loop. It owns the debounce timer: repeated mutation
// bursts within the window collapse into one re-scan.
func (w *watcher) run(ctx context.Context) {
	t := &w.p.cfg.Tuning

	window := time.NewTicker(t.DynamicWindow)
	defer window.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.p.doc.Unsubscribe(w.events)
			return

		case ev, ok := <-w.events:
			if !ok {
				return
			}
			switch ev.Op {
			case dom.OpNavigate:
				if debounce != nil {
					debounce.Stop()
					debounceC = nil
				}
				w.handleNavigate(ctx, ev.Text)

			case dom.OpScroll:
				w.drainLazy(ctx)

			default:
				if ev.Annotation {
					continue // self-inflicted churn
				}
				w.mutations++
				if ev.Op == dom.OpInsert && isContentTag(ev.Tag) {
					w.inserted++
				}
				w.classify()
				// Trailing debounce: restart the window on every burst.
				if debounce == nil {
					debounce = time.NewTimer(t.DebounceWindow)
				} else {
					debounce.Stop()
					debounce.Reset(t.DebounceWindow)
				}
				debounceC = debounce.C
			}

		case <-debounceC:
			debounceC = nil
			w.rescan(ctx)

		case <-window.C:
			w.resetWindow()
		}
	}
}

// classify flips the page to dynamic once either rolling counter crosses
// its threshold. The flag holds until the window resets.
func (w *watcher) classify() {
	t := &w.p.cfg.Tuning
	if w.mutations >= t.MutationThreshold || w.inserted >= t.InsertedThreshold {
		if !w.p.dynamic.Swap(true) {
			w.p.logger.Info("gloss: page classified dynamic",
				"mutations", w.mutations, "inserted", w.inserted)
			if w.p.metrics != nil {
				w.p.metrics.Record("gloss_dynamic_flips", 1, nil)
			}
		}
	}
}

func (w *watcher) resetWindow() {
	w.mutations = 0
	w.inserted = 0
	if w.p.dynamic.Swap(false) {
		w.p.logger.Debug("gloss: dynamic window reset")
	}
}

// handleNavigate treats a URL change as a full reset: every annotation is
// removed, progress zeroed, lazy registry dropped, and a fresh
// viewport-prioritized pass launched against the new content.
func (w *watcher) handleNavigate(ctx context.Context, url string) {
	w.p.logger.Info("gloss: navigation detected", "url", url)
	removed := w.p.RemoveAnnotations()
	if removed > 0 {
		w.p.logger.Debug("gloss: annotations cleared", "count", removed)
	}
	w.p.progress.reset()
	w.lazy = make(map[*html.Node]struct{})
	w.resetWindow()

	if w.p.enabled.Load() {
		w.p.launchInitialPass(ctx)
	}
}

// rescan feeds the mutation delta back into the scheduler. Dynamic pages
// use viewport-only selection (cheaper, tracks what the user sees);
// static pages re-run the full selector. Candidates already carrying an
// adjacent annotation were filtered during selection.
func (w *watcher) rescan(ctx context.Context) {
	if !w.p.enabled.Load() {
		return
	}

	var candidates []*html.Node
	w.p.doc.View(func(root *html.Node) {
		candidates = w.p.selectCandidates(root)
	})
	if len(candidates) == 0 {
		return
	}

	if w.p.dynamic.Load() {
		near, far := w.p.partition(candidates)
		// Far elements wait for the viewport instead of burning batches.
		for _, el := range far {
			w.lazy[el] = struct{}{}
		}
		candidates = near
	}
	if len(candidates) == 0 {
		return
	}

	w.p.logger.Debug("gloss: re-scan", "delta", len(candidates), "dynamic", w.p.dynamic.Load())
	w.p.spawnPass(func(ctx context.Context) {
		w.p.runRescan(ctx, candidates)
	}, ctx)
}

// drainLazy submits deferred elements that have scrolled within the
// viewport margin, deregistering each on submission.
func (w *watcher) drainLazy(ctx context.Context) {
	if len(w.lazy) == 0 || !w.p.enabled.Load() {
		return
	}
	vp := w.p.viewport()
	var due []*html.Node
	w.p.doc.View(func(root *html.Node) {
		for el := range w.lazy {
			off, ok := dom.Offset(root, el)
			if !ok {
				delete(w.lazy, el) // left the tree
				continue
			}
			if vp.Near(off) {
				due = append(due, el)
				delete(w.lazy, el)
			}
		}
	})
	if len(due) == 0 {
		return
	}
	w.p.logger.Debug("gloss: lazy elements due", "count", len(due))
	w.p.spawnPass(func(ctx context.Context) {
		w.p.runRescan(ctx, due)
	}, ctx)
}
