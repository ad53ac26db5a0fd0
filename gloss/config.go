package gloss

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pipeline configuration.
type Config struct {
	// Source and Target are BCP 47 language tags forming the translation
	// pair, e.g. "en" → "ja".
	Source string `yaml:"source"`
	Target string `yaml:"target"`

	// ContentSelectors is the ordered probe list for main-content
	// discovery. When several match, the one with the most text wins.
	ContentSelectors []string `yaml:"content_selectors"`

	// Blocklist holds regexp fragments matched (case-insensitively)
	// against element id and class values to exclude navigation,
	// footers, ads and similar boilerplate.
	Blocklist []string `yaml:"blocklist"`

	Tuning Tuning `yaml:"tuning"`
}

// Tuning exposes the pipeline's heuristic constants. The scoring weights
// have no principled derivation; they are configuration, not law.
type Tuning struct {
	// Density scoring: score = TextWeight·textLen + ChildWeight·children
	// + DensityWeight·(textLen/elements) − LinkPenalty·linkRatio.
	TextWeight    float64 `yaml:"text_weight"`
	ChildWeight   float64 `yaml:"child_weight"`
	DensityWeight float64 `yaml:"density_weight"`
	LinkPenalty   float64 `yaml:"link_penalty"`

	// MinContainerText discards containers at or below this many text
	// characters. MinQualifyingChildren discards containers with fewer
	// translatable blocks.
	MinContainerText      int `yaml:"min_container_text"`
	MinQualifyingChildren int `yaml:"min_qualifying_children"`

	// MinTextLen is the per-element floor for translatable text.
	MinTextLen int `yaml:"min_text_len"`

	// Batch sizes and mandatory inter-batch delays.
	VisibleBatch    int           `yaml:"visible_batch"`
	BackgroundBatch int           `yaml:"background_batch"`
	RescanBatch     int           `yaml:"rescan_batch"`
	VisibleDelay    time.Duration `yaml:"visible_delay"`
	BackgroundDelay time.Duration `yaml:"background_delay"`
	RescanDelay     time.Duration `yaml:"rescan_delay"`

	// DebounceWindow collapses mutation bursts into one re-scan.
	DebounceWindow time.Duration `yaml:"debounce_window"`

	// Dynamic-site classification: counters over DynamicWindow; crossing
	// either threshold classifies the page dynamic until the window
	// resets.
	DynamicWindow     time.Duration `yaml:"dynamic_window"`
	MutationThreshold int           `yaml:"mutation_threshold"`
	InsertedThreshold int           `yaml:"inserted_threshold"`

	// Viewport model: characters per screen and the prefetch margin in
	// screens on either side.
	ScreenChars    int `yaml:"screen_chars"`
	ViewportMargin int `yaml:"viewport_margin"`

	// Linger keeps the progress record visible after completion or
	// cancellation before it resets.
	Linger time.Duration `yaml:"linger"`
}

func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = "en"
	}
	if c.Target == "" {
		c.Target = "ja"
	}
	if len(c.ContentSelectors) == 0 {
		c.ContentSelectors = []string{
			"article",
			"main",
			"[role=main]",
			"#content",
			"#main-content",
			".post-content",
			".article-body",
			".entry-content",
			".post-body",
			".story-body",
			".main-content",
			".content",
		}
	}
	if len(c.Blocklist) == 0 {
		c.Blocklist = []string{
			`nav`, `menu`, `sidebar`, `footer`, `header`, `banner`,
			`\bads?\b`, `advert`, `promo`, `sponsor`,
			`comment`, `related`, `share`, `social`,
			`breadcrumb`, `widget`, `cookie`, `popup`,
		}
	}
	c.Tuning.applyDefaults()
}

func (t *Tuning) applyDefaults() {
	if t.TextWeight == 0 {
		t.TextWeight = 0.1
	}
	if t.ChildWeight == 0 {
		t.ChildWeight = 10
	}
	if t.DensityWeight == 0 {
		t.DensityWeight = 5
	}
	if t.LinkPenalty == 0 {
		t.LinkPenalty = 50
	}
	if t.MinContainerText <= 0 {
		t.MinContainerText = 200
	}
	if t.MinQualifyingChildren <= 0 {
		t.MinQualifyingChildren = 2
	}
	if t.MinTextLen <= 0 {
		t.MinTextLen = 10
	}
	if t.VisibleBatch <= 0 {
		t.VisibleBatch = 5
	}
	if t.BackgroundBatch <= 0 {
		t.BackgroundBatch = 3
	}
	if t.RescanBatch <= 0 {
		t.RescanBatch = 2
	}
	if t.VisibleDelay <= 0 {
		t.VisibleDelay = 150 * time.Millisecond
	}
	if t.BackgroundDelay <= 0 {
		t.BackgroundDelay = 400 * time.Millisecond
	}
	if t.RescanDelay <= 0 {
		t.RescanDelay = 600 * time.Millisecond
	}
	if t.DebounceWindow <= 0 {
		t.DebounceWindow = 500 * time.Millisecond
	}
	if t.DynamicWindow <= 0 {
		t.DynamicWindow = 30 * time.Second
	}
	if t.MutationThreshold <= 0 {
		t.MutationThreshold = 12
	}
	if t.InsertedThreshold <= 0 {
		t.InsertedThreshold = 30
	}
	if t.ScreenChars <= 0 {
		t.ScreenChars = 1200
	}
	if t.ViewportMargin <= 0 {
		t.ViewportMargin = 3
	}
	if t.Linger <= 0 {
		t.Linger = 3 * time.Second
	}
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gloss: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("gloss: parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}
