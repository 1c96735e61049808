package dashboard

import (
	"fmt"
	"sort"
)

// Kind identifies the visualization a widget renders.
type Kind string

const (
	KindLineChart Kind = "line-chart"
	KindAreaChart Kind = "area-chart"
	KindBarChart  Kind = "bar-chart"
	KindHistogram Kind = "histogram"
	KindBoolean   Kind = "boolean"
	KindValue     Kind = "value"
	KindHeadline  Kind = "headline"
	KindImage     Kind = "image"
	KindText      Kind = "text"
	KindMap       Kind = "map"
	KindSlider    Kind = "slider"
	KindIframe    Kind = "iframe"
	KindImageMap  Kind = "image-map"
	KindTable     Kind = "table"
	KindPieChart  Kind = "pie-chart"
)

// Spec describes a widget kind: its default grid footprint and how to build
// an empty configuration for it.
type Spec struct {
	Kind          Kind
	DefaultWidth  int
	DefaultHeight int
	NewConfig     func() Config
}

// Registry maps each kind to its Spec.
type Registry struct {
	specs map[Kind]Spec
}

// NewRegistry returns a registry holding the built-in kinds with their
// default footprints.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[Kind]Spec)}
	for _, s := range builtinSpecs() {
		r.specs[s.Kind] = s
	}
	return r
}

func builtinSpecs() []Spec {
	chart := func(k Kind) Spec {
		return Spec{Kind: k, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return newChartConfig(k) }}
	}
	return []Spec{
		chart(KindLineChart),
		chart(KindAreaChart),
		chart(KindBarChart),
		chart(KindHistogram),
		{Kind: KindBoolean, DefaultWidth: 6, DefaultHeight: 2, NewConfig: func() Config { return newBooleanConfig() }},
		{Kind: KindValue, DefaultWidth: 6, DefaultHeight: 2, NewConfig: func() Config { return newValueConfig("Value") }},
		{Kind: KindHeadline, DefaultWidth: 6, DefaultHeight: 2, NewConfig: func() Config { return newValueConfig("Headline") }},
		{Kind: KindImage, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return &ImageConfig{Title: "Image", Fit: "contain"} }},
		{Kind: KindText, DefaultWidth: 4, DefaultHeight: 4, NewConfig: func() Config { return &TextConfig{Title: "Text", Align: "left"} }},
		{Kind: KindMap, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return newMapConfig() }},
		{Kind: KindSlider, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return newSliderConfig() }},
		{Kind: KindIframe, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return &IframeConfig{Title: "Iframe"} }},
		{Kind: KindImageMap, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return &ImageMapConfig{Title: "Image map"} }},
		{Kind: KindTable, DefaultWidth: 6, DefaultHeight: 4, NewConfig: func() Config { return newTableConfig() }},
		{Kind: KindPieChart, DefaultWidth: 6, DefaultHeight: 3, NewConfig: func() Config { return &PieConfig{Title: "Pie chart", ShowLegend: true} }},
	}
}

// Lookup returns the Spec for kind.
func (r *Registry) Lookup(kind Kind) (Spec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// Footprint returns the default width and height for kind.
func (r *Registry) Footprint(kind Kind) (int, int, error) {
	s, ok := r.specs[kind]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown widget kind %q", ErrValidation, kind)
	}
	return s.DefaultWidth, s.DefaultHeight, nil
}

// SetFootprint overrides the default footprint of a known kind.
func (r *Registry) SetFootprint(kind Kind, width, height int) error {
	s, ok := r.specs[kind]
	if !ok {
		return fmt.Errorf("%w: unknown widget kind %q", ErrValidation, kind)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: footprint for %s must be positive, got %dx%d", ErrValidation, kind, width, height)
	}
	s.DefaultWidth = width
	s.DefaultHeight = height
	r.specs[kind] = s
	return nil
}

// Kinds returns every registered kind, sorted by name.
func (r *Registry) Kinds() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// DefaultConfig returns a fresh default configuration for kind.
func (r *Registry) DefaultConfig(kind Kind) (Config, error) {
	s, ok := r.specs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown widget kind %q", ErrValidation, kind)
	}
	return s.NewConfig(), nil
}
