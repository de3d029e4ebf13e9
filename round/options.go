package round

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultWidth   = 7
	DefaultHeight  = 6
	DefaultLength  = 4
	DefaultTimeout = 10

	// MaxPlayers is the number of distinct chips a board can show.
	MaxPlayers = 6
)

// Option names understood by Options.Apply.
const (
	OptWidth   = "width"
	OptHeight  = "height"
	OptLength  = "length"
	OptTimeout = "timeout"
	OptDelay   = "delay"
)

var optionAliases = map[string]string{
	OptWidth:         OptWidth,
	OptHeight:        OptHeight,
	OptLength:        OptLength,
	OptTimeout:       OptTimeout,
	OptDelay:         OptDelay,
	"timeoutSeconds": OptTimeout,
	"fogDelay":       OptDelay,
}

// Config is the fixed configuration of one round. Zero values are filled
// from the defaults by Options.Config.
type Config struct {
	Width          int
	Height         int
	Length         int
	TimeoutSeconds int // Timed only
	Delay          int // Fog only
}

func (c Config) validate(variant Variant, players int) error {
	if players < 2 {
		return ErrInsufficientPlayers
	}
	if players > MaxPlayers {
		return fmt.Errorf("%w: at most %d players", ErrInvalidConfiguration, MaxPlayers)
	}
	sizes := []struct {
		name  string
		value int
	}{{OptWidth, c.Width}, {OptHeight, c.Height}, {OptLength, c.Length}}
	for _, o := range sizes {
		if o.value <= 0 {
			return fmt.Errorf("%w: option %s's value must be positive: %d", ErrInvalidConfiguration, o.name, o.value)
		}
	}
	if c.Width > len(ColumnSymbols) {
		return fmt.Errorf("%w: width must be at most %d", ErrInvalidConfiguration, len(ColumnSymbols))
	}
	switch variant {
	case Timed:
		if c.TimeoutSeconds <= 0 {
			return fmt.Errorf("%w: option timeout's value must be positive: %d", ErrInvalidConfiguration, c.TimeoutSeconds)
		}
	case Fog:
		if c.Delay <= 0 {
			return fmt.Errorf("%w: option delay's value must be positive: %d", ErrInvalidConfiguration, c.Delay)
		}
	}
	return nil
}

// Options holds the pending key=value settings that the next started round
// is created with. The zero value has no overrides.
type Options struct {
	keys   []string
	values map[string]int
}

// Apply validates every argument before applying any of them and returns the
// updated options. An argument of the form "name=" removes the override.
func (o Options) Apply(args []string) (Options, error) {
	type change struct {
		name  string
		value int
		reset bool
	}
	changes := make([]change, 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return o, fmt.Errorf("%w: no = in %s", ErrInvalidConfiguration, arg)
		}
		canonical, known := optionAliases[name]
		if !known {
			return o, fmt.Errorf("%w: unknown option: %s", ErrInvalidConfiguration, name)
		}
		if raw == "" {
			changes = append(changes, change{name: canonical, reset: true})
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return o, fmt.Errorf("%w: option %s's value not an int: %s", ErrInvalidConfiguration, name, raw)
		}
		if v <= 0 {
			return o, fmt.Errorf("%w: option %s's value must be positive: %d", ErrInvalidConfiguration, name, v)
		}
		changes = append(changes, change{name: canonical, value: v})
	}

	next := o.clone()
	for _, c := range changes {
		if c.reset {
			next.remove(c.name)
			continue
		}
		next.set(c.name, c.value)
	}
	return next, nil
}

// Get returns an override if one is set.
func (o Options) Get(name string) (int, bool) {
	v, ok := o.values[name]
	return v, ok
}

func (o Options) Empty() bool { return len(o.keys) == 0 }

// String lists overrides in the order they were first set.
func (o Options) String() string {
	parts := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, o.values[k]))
	}
	return strings.Join(parts, ", ")
}

// Config resolves the options into a round configuration. Options that do
// not apply to variant are dropped.
func (o Options) Config(variant Variant, players int) Config {
	cfg := Config{
		Width:  o.getOr(OptWidth, DefaultWidth),
		Height: o.getOr(OptHeight, DefaultHeight),
		Length: o.getOr(OptLength, DefaultLength),
	}
	switch variant {
	case Timed:
		cfg.TimeoutSeconds = o.getOr(OptTimeout, DefaultTimeout)
	case Fog:
		cfg.Delay = o.getOr(OptDelay, players)
	}
	return cfg
}

func (o Options) getOr(name string, def int) int {
	if v, ok := o.values[name]; ok {
		return v
	}
	return def
}

func (o Options) clone() Options {
	next := Options{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]int, len(o.values)),
	}
	for k, v := range o.values {
		next.values[k] = v
	}
	return next
}

func (o *Options) set(name string, v int) {
	if _, ok := o.values[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.values[name] = v
}

func (o *Options) remove(name string) {
	if _, ok := o.values[name]; !ok {
		return
	}
	delete(o.values, name)
	for i, k := range o.keys {
		if k == name {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}
