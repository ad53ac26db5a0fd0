package gloss

import (
	"context"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domgloss/dom"
)

// batchProfile is a (size, inter-batch delay) pair. Profiles get smaller
// and slower for background content, re-scans, and dynamic pages.
type batchProfile struct {
	size  int
	delay time.Duration
}

func (p *Pipeline) visibleProfile() batchProfile {
	t := &p.cfg.Tuning
	if p.dynamic.Load() {
		return batchProfile{size: t.RescanBatch, delay: t.RescanDelay}
	}
	return batchProfile{size: t.VisibleBatch, delay: t.VisibleDelay}
}

func (p *Pipeline) backgroundProfile() batchProfile {
	t := &p.cfg.Tuning
	if p.dynamic.Load() {
		return batchProfile{size: t.RescanBatch, delay: t.RescanDelay}
	}
	return batchProfile{size: t.BackgroundBatch, delay: t.BackgroundDelay}
}

func (p *Pipeline) rescanProfile() batchProfile {
	t := &p.cfg.Tuning
	return batchProfile{size: t.RescanBatch, delay: t.RescanDelay}
}

// viewport builds the current viewport from the document scroll state.
func (p *Pipeline) viewport() dom.Viewport {
	t := &p.cfg.Tuning
	return dom.Viewport{Top: p.doc.Scroll(), Screen: t.ScreenChars, Margin: t.ViewportMargin}
}

// partition splits candidates into near-viewport and background sets,
// preserving document order within each.
func (p *Pipeline) partition(candidates []*html.Node) (visible, background []*html.Node) {
	vp := p.viewport()
	p.doc.View(func(root *html.Node) {
		for _, el := range candidates {
			off, ok := dom.Offset(root, el)
			if !ok {
				continue // dropped from the tree since selection
			}
			if vp.Near(off) {
				visible = append(visible, el)
			} else {
				background = append(background, el)
			}
		}
	})
	return visible, background
}

// runPass executes one scheduling pass over a candidate set: visible
// batches first, then background, with the enabled flag honoured at every
// batch boundary. Safe to run concurrently with other passes.
func (p *Pipeline) runPass(ctx context.Context, candidates []*html.Node) {
	if len(candidates) == 0 {
		return
	}
	runID := p.newID()
	started := time.Now()

	p.progress.begin()
	defer p.progress.finish()
	p.progress.addTotal(len(candidates))

	visible, background := p.partition(candidates)
	p.logger.Info("gloss: pass started",
		"run", runID, "visible", len(visible), "background", len(background))

	if !p.processSet(ctx, visible, p.visibleProfile()) {
		return
	}
	if !p.processSet(ctx, background, p.backgroundProfile()) {
		return
	}

	p.logger.Info("gloss: pass finished", "run", runID, "took", time.Since(started))
	if p.metrics != nil {
		p.metrics.Record("gloss_pass_duration_ms", float64(time.Since(started).Milliseconds()),
			map[string]string{"run": runID})
		p.metrics.Record("gloss_pass_elements", float64(len(visible)+len(background)), nil)
	}
}

// runRescan executes a mutation-triggered delta pass with the re-scan
// profile for both sets.
func (p *Pipeline) runRescan(ctx context.Context, candidates []*html.Node) {
	if len(candidates) == 0 {
		return
	}
	p.progress.begin()
	defer p.progress.finish()
	p.progress.addTotal(len(candidates))

	visible, background := p.partition(candidates)
	prof := p.rescanProfile()
	if p.processSet(ctx, visible, prof) {
		p.processSet(ctx, background, prof)
	}
}

// processSet runs els in fixed-size batches. Elements of one batch are
// translated concurrently and the batch always runs to completion once
// started; the enabled flag and context are only consulted between
// batches. Returns false when the pass was cut short.
func (p *Pipeline) processSet(ctx context.Context, els []*html.Node, prof batchProfile) bool {
	for start := 0; start < len(els); start += prof.size {
		if !p.enabled.Load() || ctx.Err() != nil {
			return false
		}

		end := start + prof.size
		if end > len(els) {
			end = len(els)
		}
		batch := els[start:end]

		batchStart := time.Now()
		var wg sync.WaitGroup
		for _, el := range batch {
			wg.Add(1)
			go func(el *html.Node) {
				defer wg.Done()
				p.translateElement(ctx, el)
			}(el)
		}
		wg.Wait()

		p.progress.addProcessed(len(batch))
		if p.metrics != nil {
			p.metrics.Record("gloss_batch_duration_ms",
				float64(time.Since(batchStart).Milliseconds()), nil)
		}

		// Mandatory yield between batches so the host page keeps up.
		if end < len(els) && !sleepCtx(ctx, prof.delay) {
			return false
		}
	}
	return true
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
