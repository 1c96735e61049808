package dashboard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wcatz/dashboard-builder/internal/layout"
)

const (
	// DefaultRefreshInterval is the mirror refresh interval in seconds, as
	// written into persisted snapshots.
	DefaultRefreshInterval = "300"
	// DefaultIcon is the icon shown next to a dashboard in listings.
	DefaultIcon = "RxDashboard"
)

// Dashboard is a named collection of widgets and their grid placements.
// Layout holds exactly one rectangle per widget, matched by ID.
type Dashboard struct {
	ID              string
	Name            string
	Icon            string
	RefreshInterval string
	Widgets         []Widget
	Layout          []layout.Rect
	// NextSeq is the widget ID counter; see IDGenerator.
	NextSeq int
}

// New creates an empty dashboard with a fresh ID.
func New(name string) (Dashboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Dashboard{}, fmt.Errorf("%w: dashboard name is empty", ErrValidation)
	}
	return Dashboard{
		ID:              NewDashboardID(),
		Name:            name,
		Icon:            DefaultIcon,
		RefreshInterval: DefaultRefreshInterval,
		Widgets:         []Widget{},
		Layout:          []layout.Rect{},
	}, nil
}

// Rename returns d with a new name.
func Rename(d Dashboard, name string) (Dashboard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return d, fmt.Errorf("%w: dashboard name is empty", ErrValidation)
	}
	out := d.clone()
	out.Name = name
	return out, nil
}

// Widget returns the widget with the given ID.
func (d Dashboard) Widget(id string) (Widget, bool) {
	i := d.widgetIndex(id)
	if i < 0 {
		return Widget{}, false
	}
	return d.Widgets[i], true
}

// Rect returns the layout rectangle of the widget with the given ID.
func (d Dashboard) Rect(id string) (layout.Rect, bool) {
	i := d.rectIndex(id)
	if i < 0 {
		return layout.Rect{}, false
	}
	return d.Layout[i], true
}

func (d Dashboard) widgetIndex(id string) int {
	for i, w := range d.Widgets {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (d Dashboard) rectIndex(id string) int {
	for i, r := range d.Layout {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// clone copies the widget and layout slices so the result can be changed
// without affecting d.
func (d Dashboard) clone() Dashboard {
	out := d
	out.Widgets = append(make([]Widget, 0, len(d.Widgets)+1), d.Widgets...)
	out.Layout = append(make([]layout.Rect, 0, len(d.Layout)+1), d.Layout...)
	return out
}

// RemoveWidget returns d without the widget and its rectangle. Removing an
// absent ID is a no-op.
func RemoveWidget(d Dashboard, id string) Dashboard {
	out := d.clone()
	out.Widgets = out.Widgets[:0]
	for _, w := range d.Widgets {
		if w.ID != id {
			out.Widgets = append(out.Widgets, w)
		}
	}
	out.Layout = out.Layout[:0]
	for _, r := range d.Layout {
		if r.ID != id {
			out.Layout = append(out.Layout, r)
		}
	}
	return out
}

// UpdateWidgetConfig returns d with the widget's config replaced by cfg.
func UpdateWidgetConfig(d Dashboard, id string, cfg Config) (Dashboard, error) {
	i := d.widgetIndex(id)
	if i < 0 {
		return d, fmt.Errorf("%w: widget %s", ErrNotFound, id)
	}
	if cfg == nil {
		return d, fmt.Errorf("%w: widget %s: config is required", ErrValidation, id)
	}
	if err := cfg.Validate(); err != nil {
		return d, fmt.Errorf("widget %s: %w", id, err)
	}
	out := d.clone()
	out.Widgets[i].Config = cfg
	return out, nil
}

// Model applies widget operations using a kind registry and a layout engine.
type Model struct {
	Kinds  *Registry
	Engine *layout.Engine
	// PackDuplicates places duplicated widgets with the engine instead of
	// one row below their source.
	PackDuplicates bool
}

// NewModel creates a model. A nil registry or engine selects the defaults.
func NewModel(kinds *Registry, engine *layout.Engine) *Model {
	if kinds == nil {
		kinds = NewRegistry()
	}
	if engine == nil {
		engine = layout.NewEngine(layout.DefaultColumns, false)
	}
	return &Model{Kinds: kinds, Engine: engine}
}

// Columns returns the grid width the model places widgets on.
func (m *Model) Columns() int {
	return m.Engine.Columns
}

// AddWidget places a new widget of the given kind at the engine's next free
// slot and returns the new dashboard and the widget's ID. A nil cfg selects
// the kind's defaults.
func (m *Model) AddWidget(d Dashboard, kind Kind, cfg Config) (Dashboard, string, error) {
	width, height, err := m.Kinds.Footprint(kind)
	if err != nil {
		return d, "", err
	}
	if cfg == nil {
		if cfg, err = m.Kinds.DefaultConfig(kind); err != nil {
			return d, "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		return d, "", fmt.Errorf("%s widget: %w", kind, err)
	}

	gen := NewIDGenerator(d)
	id := gen.Next()

	out := d.clone()
	out.NextSeq = gen.Seq()
	out.Widgets = append(out.Widgets, Widget{ID: id, Kind: kind, Config: cfg})
	out.Layout = m.Engine.Append(d.Layout, id, width, height)
	return out, id, nil
}

// DuplicateWidget copies a widget's config under a new ID. The copy's
// rectangle has the source's size and x, one row further down; it is not
// checked against the rest of the layout and may overlap the source unless
// PackDuplicates is set.
func (m *Model) DuplicateWidget(d Dashboard, id string) (Dashboard, string, error) {
	wi, ri := d.widgetIndex(id), d.rectIndex(id)
	if wi < 0 || ri < 0 {
		return d, "", fmt.Errorf("%w: widget %s", ErrNotFound, id)
	}
	src := d.Widgets[wi]
	cfg, err := cloneConfig(m.Kinds, src.Kind, src.Config)
	if err != nil {
		return d, "", err
	}

	gen := NewIDGenerator(d)
	newID := gen.Next()

	out := d.clone()
	out.NextSeq = gen.Seq()
	out.Widgets = append(out.Widgets, Widget{ID: newID, Kind: src.Kind, Config: cfg, Extra: cloneExtra(src.Extra)})

	rect := d.Layout[ri]
	if m.PackDuplicates {
		out.Layout = m.Engine.Append(d.Layout, newID, rect.W, rect.H)
	} else {
		rect.ID = newID
		rect.Y++
		out.Layout = append(out.Layout, rect)
	}
	return out, newID, nil
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// ApplyLayout replaces d's layout with rects, as produced by dragging or
// resizing on the grid. Every widget must appear exactly once, every
// rectangle must fit the grid, and no two may overlap.
func (m *Model) ApplyLayout(d Dashboard, rects []layout.Rect) (Dashboard, error) {
	if err := m.checkLayout(d.Widgets, rects, false); err != nil {
		return d, err
	}
	out := d.clone()
	out.Layout = append(out.Layout[:0], rects...)
	return out, nil
}

// Check verifies the widget/rectangle bijection and grid bounds of d, and
// unless allowOverlap is set, that no two rectangles overlap.
func (m *Model) Check(d Dashboard, allowOverlap bool) error {
	return m.checkLayout(d.Widgets, d.Layout, allowOverlap)
}

func (m *Model) checkLayout(widgets []Widget, rects []layout.Rect, allowOverlap bool) error {
	ids := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		if ids[w.ID] {
			return fmt.Errorf("%w: duplicate widget id %s", ErrInvariantViolation, w.ID)
		}
		ids[w.ID] = true
	}

	placed := make(map[string]bool, len(rects))
	for _, r := range rects {
		if !ids[r.ID] {
			return fmt.Errorf("%w: rectangle %s has no widget", ErrInvariantViolation, r.ID)
		}
		if placed[r.ID] {
			return fmt.Errorf("%w: widget %s placed twice", ErrInvariantViolation, r.ID)
		}
		placed[r.ID] = true
		if !layout.InBounds(r, m.Columns()) {
			return fmt.Errorf("%w: rectangle %s (%d,%d %dx%d) outside a %d-column grid",
				ErrInvariantViolation, r.ID, r.X, r.Y, r.W, r.H, m.Columns())
		}
	}
	if len(placed) != len(ids) {
		for id := range ids {
			if !placed[id] {
				return fmt.Errorf("%w: widget %s has no rectangle", ErrInvariantViolation, id)
			}
		}
	}

	if !allowOverlap {
		if pairs := layout.Overlapping(rects); len(pairs) > 0 {
			a, b := rects[pairs[0][0]], rects[pairs[0][1]]
			return fmt.Errorf("%w: rectangles %s and %s overlap", ErrInvariantViolation, a.ID, b.ID)
		}
	}
	return nil
}
