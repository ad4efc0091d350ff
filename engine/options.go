package engine

import "github.com/rs/zerolog"

// Option configures Execute via the functional options pattern.
type Option func(*config)

type config struct {
	DefaultMeasure    string // measure when QuerySpec.Measure is empty
	Unit              string // display unit prefix, e.g. "$" or "kg"
	TemporalDimension string // dimension holding periods; detected when empty
	Palette           []string
	Logger            zerolog.Logger
}

// WithDefaultMeasure sets the measure to aggregate when QuerySpec.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// WithUnit sets the unit rendered in front of formatted values.
func WithUnit(unit string) Option {
	return func(c *config) {
		c.Unit = unit
	}
}

// WithTemporalDimension names the dimension used for growth, periods and
// date sorting. Without it the engine picks the first dimension whose
// values all parse as dates or periods.
func WithTemporalDimension(dimension string) Option {
	return func(c *config) {
		c.TemporalDimension = dimension
	}
}

// WithPalette sets chart colours. See Palette for the named styles.
func WithPalette(colors []string) Option {
	return func(c *config) {
		if len(colors) > 0 {
			c.Palette = colors
		}
	}
}

// WithLogger routes engine logs to l.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.Logger = l
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		Palette: palettes["default"],
		Logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

var palettes = map[string][]string{
	"default": {
		"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
		"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
	},
	"seaborn": {
		"#4C72B0", "#DD8452", "#55A868", "#C44E52", "#8172B3",
		"#937860", "#DA8BC3", "#8C8C8C", "#CCB974", "#64B5CD",
	},
	"ggplot": {
		"#E24A33", "#348ABD", "#988ED5", "#777777", "#FBC15E",
		"#8EBA42", "#FFB5B8",
	},
	"classic": {
		"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
		"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	},
}

// Palette returns the colours for a plot style, falling back to "default".
func Palette(style string) []string {
	if p, ok := palettes[style]; ok {
		return p
	}
	return palettes["default"]
}
