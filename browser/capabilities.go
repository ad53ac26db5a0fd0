package browser

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/text/language"

	"github.com/hazyhaar/domgloss/idgen"
	"github.com/hazyhaar/domgloss/translate"
)

// Capabilities exposes the page's built-in language detection and
// translation engines behind the pipeline's capability interfaces.
func (h *Host) Capabilities() (translate.Detector, translate.Translator) {
	return &pageDetector{h: h}, &pageTranslator{h: h, newID: idgen.Prefixed("sess_", idgen.Default)}
}

type pageDetector struct {
	h *Host
}

const detectScript = `async (text) => {
	if (!('LanguageDetector' in self)) return '';
	const det = await LanguageDetector.create();
	const ranked = await det.detect(text);
	return ranked.length ? ranked[0].detectedLanguage : 'und';
}`

func (d *pageDetector) Detect(ctx context.Context, text string) (language.Tag, error) {
	res, err := d.h.page.Context(ctx).Eval(detectScript, text)
	if err != nil {
		return language.Und, fmt.Errorf("browser: detect: %w", err)
	}
	code := res.Value.Str()
	if code == "" {
		return language.Und, translate.ErrDetectUnavailable
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, nil
	}
	return tag, nil
}

type pageTranslator struct {
	h     *Host
	newID idgen.Generator
}

const availabilityScript = `async (src, tgt) => {
	if (!('Translator' in self)) return 'unavailable';
	return await Translator.availability({sourceLanguage: src, targetLanguage: tgt});
}`

func (t *pageTranslator) Availability(ctx context.Context, src, tgt language.Tag) (translate.Availability, error) {
	res, err := t.h.page.Context(ctx).Eval(availabilityScript, src.String(), tgt.String())
	if err != nil {
		return translate.Unavailable, fmt.Errorf("browser: availability: %w", err)
	}
	// "downloadable" and "downloading" both resolve once create() runs.
	if res.Value.Str() == "unavailable" {
		return translate.Unavailable, nil
	}
	return translate.Available, nil
}

const createSessionScript = `async (key, src, tgt) => {
	self.__domgloss = self.__domgloss || {};
	self.__domgloss[key] = await Translator.create({sourceLanguage: src, targetLanguage: tgt});
	return true;
}`

func (t *pageTranslator) NewSession(ctx context.Context, src, tgt language.Tag) (translate.Session, error) {
	key := t.newID()
	_, err := t.h.page.Context(ctx).Eval(createSessionScript, key, src.String(), tgt.String())
	if err != nil {
		return nil, fmt.Errorf("browser: create session: %w", err)
	}
	return &pageSession{h: t.h, key: key}, nil
}

type pageSession struct {
	h   *Host
	key string
}

const translateScript = `async (key, text) => {
	const sess = self.__domgloss && self.__domgloss[key];
	if (!sess) throw new Error('session gone');
	return await sess.translate(text);
}`

// TranslateStreaming runs the page's translation in one round trip and
// re-chunks the result, preserving the incremental contract without
// holding a CDP stream open per element.
func (s *pageSession) TranslateStreaming(ctx context.Context, text string) (translate.Stream, error) {
	res, err := s.h.page.Context(ctx).Eval(translateScript, s.key, text)
	if err != nil {
		return nil, fmt.Errorf("browser: translate: %w", err)
	}
	return &chunkStream{runes: []rune(res.Value.Str()), size: 32}, nil
}

const closeSessionScript = `(key) => {
	if (self.__domgloss && self.__domgloss[key]) {
		self.__domgloss[key].destroy();
		delete self.__domgloss[key];
	}
}`

func (s *pageSession) Close() error {
	_, err := s.h.page.Eval(closeSessionScript, s.key)
	if err != nil {
		return fmt.Errorf("browser: close session: %w", err)
	}
	return nil
}

// chunkStream yields a completed translation in fixed rune chunks.
type chunkStream struct {
	runes []rune
	size  int
	pos   int
}

func (c *chunkStream) Next() (string, error) {
	if c.pos >= len(c.runes) {
		return "", io.EOF
	}
	end := c.pos + c.size
	if end > len(c.runes) {
		end = len(c.runes)
	}
	chunk := string(c.runes[c.pos:end])
	c.pos = end
	return chunk, nil
}
