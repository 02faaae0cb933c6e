package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/render"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
)

type Config struct {
	Title     string  `yaml:"title"`
	Format    string  `yaml:"format"`
	Width     float64 `yaml:"width"`
	FontSize  float64 `yaml:"font_size"`
	MinWeight float64 `yaml:"min_weight"`
	MaxDepth  int     `yaml:"max_depth"`
	Inverted  bool    `yaml:"inverted"`

	// Modes to aggregate, all of them when empty.
	Modes     []string `yaml:"modes"`
	// Direction lines are handed to sinks in, "reversed" by default.
	Direction string   `yaml:"direction"`

	Collapsed bool `yaml:"collapsed"`
	PProf     bool `yaml:"pprof"`
}

func (c *Config) fillDefault() {
	if c.Format == "" {
		c.Format = string(render.HTMLFormat)
	}
	if len(c.Modes) == 0 {
		for _, mode := range aggregate.Modes {
			c.Modes = append(c.Modes, string(mode))
		}
	}
	if c.Direction == "" {
		c.Direction = sink.Reversed.String()
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch render.Format(c.Format) {
	case render.HTMLFormat, render.JSONFormat, "":
	default:
		errs = append(errs, fmt.Errorf("unsupported format %q", c.Format))
	}
	if _, err := c.ParsedModes(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParsedDirection(); err != nil {
		errs = append(errs, err)
	}
	if c.MinWeight < 0 || c.MinWeight >= 1 {
		errs = append(errs, fmt.Errorf("min_weight must be in [0, 1), got %v", c.MinWeight))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth))
	}
	if c.Width < 0 || c.FontSize < 0 {
		errs = append(errs, errors.New("width and font_size must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *Config) ParsedModes() ([]aggregate.Mode, error) {
	modes := make([]aggregate.Mode, 0, len(c.Modes))
	for _, s := range c.Modes {
		mode, err := aggregate.ParseMode(s)
		if err != nil {
			return nil, err
		}
		modes = append(modes, mode)
	}
	return modes, nil
}

func (c *Config) ParsedDirection() (sink.Direction, error) {
	switch c.Direction {
	case sink.Reversed.String(), "":
		return sink.Reversed, nil
	case sink.Natural.String():
		return sink.Natural, nil
	default:
		return 0, fmt.Errorf("unknown line direction %q", c.Direction)
	}
}

func (c *Config) SinkOptions() sink.Options {
	return sink.Options{
		Title:     c.Title,
		Format:    render.Format(c.Format),
		Width:     c.Width,
		FontSize:  c.FontSize,
		MinWeight: c.MinWeight,
		MaxDepth:  c.MaxDepth,
		Inverted:  c.Inverted,
		Collapsed: c.Collapsed,
		PProf:     c.PProf,
	}
}

// ParseConfig reads a YAML report config. In strict mode unknown keys are errors.
func ParseConfig(path string, strict bool) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	conf := &Config{}
	dec := yaml.NewDecoder(file)
	dec.KnownFields(strict)
	if err := dec.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return conf, nil
}
