package dashboard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wcatz/dashboard-builder/internal/layout"
)

// RectDoc is a layout rectangle on the wire. The widget reference is named
// "i", following the grid library's convention.
type RectDoc struct {
	I           string `json:"i"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	W           int    `json:"w"`
	H           int    `json:"h"`
	IsDraggable bool   `json:"isDraggable"`
	IsResizable bool   `json:"isResizable"`
}

// ExportDocument is the user-facing export file.
type ExportDocument struct {
	Name    string    `json:"name"`
	Widgets []Widget  `json:"widgets"`
	Layout  []RectDoc `json:"layout"`
}

// SnapshotLayout is the layout block of a persisted snapshot.
type SnapshotLayout struct {
	Columns         int       `json:"columns"`
	WidgetPositions []RectDoc `json:"widgetPositions"`
}

// Snapshot is the persisted form of one dashboard, as stored and as pushed
// to the remote mirror.
type Snapshot struct {
	DashboardTitle  string         `json:"dashboardTitle"`
	UID             string         `json:"uid"`
	RefreshInterval string         `json:"refreshInterval"`
	Panels          []Widget       `json:"panels"`
	Layout          SnapshotLayout `json:"layout"`
	NextWidgetSeq   int            `json:"nextWidgetSeq,omitempty"`
	Icon            string         `json:"icon,omitempty"`
}

func rectDocs(rects []layout.Rect) []RectDoc {
	out := make([]RectDoc, len(rects))
	for i, r := range rects {
		out[i] = RectDoc{I: r.ID, X: r.X, Y: r.Y, W: r.W, H: r.H, IsDraggable: true, IsResizable: true}
	}
	return out
}

func rectsFromDocs(docs []RectDoc) []layout.Rect {
	out := make([]layout.Rect, len(docs))
	for i, d := range docs {
		out[i] = layout.Rect{ID: d.I, X: d.X, Y: d.Y, W: d.W, H: d.H}
	}
	return out
}

func nonNilWidgets(ws []Widget) []Widget {
	if ws == nil {
		return []Widget{}
	}
	return ws
}

// Export returns the export document for d.
func Export(d Dashboard) ExportDocument {
	return ExportDocument{
		Name:    d.Name,
		Widgets: nonNilWidgets(d.Widgets),
		Layout:  rectDocs(d.Layout),
	}
}

// ToSnapshot returns the persisted snapshot for d on a grid of the given width.
func ToSnapshot(d Dashboard, columns int) Snapshot {
	refresh := d.RefreshInterval
	if refresh == "" {
		refresh = DefaultRefreshInterval
	}
	return Snapshot{
		DashboardTitle:  d.Name,
		UID:             d.ID,
		RefreshInterval: refresh,
		Panels:          nonNilWidgets(d.Widgets),
		Layout: SnapshotLayout{
			Columns:         columns,
			WidgetPositions: rectDocs(d.Layout),
		},
		NextWidgetSeq: d.NextSeq,
		Icon:          d.Icon,
	}
}

// requireKeys fails with ErrMalformedDocument unless every key is present
// and not null.
func requireKeys(fields map[string]json.RawMessage, keys ...string) error {
	var missing []string
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || string(v) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedDocument, strings.Join(missing, ", "))
	}
	return nil
}

func (m *Model) decodeWidgets(raw json.RawMessage, validate bool) ([]Widget, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: widgets: %v", ErrMalformedDocument, err)
	}
	out := make([]Widget, 0, len(items))
	for _, item := range items {
		w, err := m.Kinds.DecodeWidget(item, validate)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func decodeRects(raw json.RawMessage) ([]layout.Rect, error) {
	var docs []RectDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("%w: layout: %v", ErrMalformedDocument, err)
	}
	return rectsFromDocs(docs), nil
}

// seqAfter returns a widget counter past every "widget-<n>" ID in ws.
func seqAfter(ws []Widget, floor int) int {
	next := floor
	for _, w := range ws {
		if n, ok := widgetSeq(w.ID); ok && n >= next {
			next = n + 1
		}
	}
	return next
}

// Import decodes an export document into a new dashboard with a fresh ID.
// name, widgets and layout must be present. When strict is set the widget
// configs are validated and the layout must hold exactly one in-bounds
// rectangle per widget; overlaps are accepted because duplicated widgets
// legitimately produce them.
func (m *Model) Import(data []byte, strict bool) (Dashboard, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Dashboard{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := requireKeys(fields, "name", "widgets", "layout"); err != nil {
		return Dashboard{}, err
	}

	var name string
	if err := json.Unmarshal(fields["name"], &name); err != nil || strings.TrimSpace(name) == "" {
		return Dashboard{}, fmt.Errorf("%w: name must be a non-empty string", ErrMalformedDocument)
	}
	widgets, err := m.decodeWidgets(fields["widgets"], strict)
	if err != nil {
		return Dashboard{}, err
	}
	rects, err := decodeRects(fields["layout"])
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		ID:              NewDashboardID(),
		Name:            name,
		Icon:            DefaultIcon,
		RefreshInterval: DefaultRefreshInterval,
		Widgets:         widgets,
		Layout:          rects,
		NextSeq:         seqAfter(widgets, 0),
	}
	if strict {
		if err := m.Check(d, true); err != nil {
			return Dashboard{}, err
		}
	}
	return d, nil
}

// FromSnapshot decodes a persisted snapshot. Snapshots are trusted: configs
// are not re-validated.
func (m *Model) FromSnapshot(data []byte) (Dashboard, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Dashboard{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := requireKeys(fields, "dashboardTitle", "uid", "panels", "layout"); err != nil {
		return Dashboard{}, err
	}

	var head struct {
		Title   string `json:"dashboardTitle"`
		UID     string `json:"uid"`
		Refresh string `json:"refreshInterval"`
		NextSeq int    `json:"nextWidgetSeq"`
		Icon    string `json:"icon"`
		Layout  struct {
			WidgetPositions json.RawMessage `json:"widgetPositions"`
		} `json:"layout"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Dashboard{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	widgets, err := m.decodeWidgets(fields["panels"], false)
	if err != nil {
		return Dashboard{}, err
	}
	rects := []layout.Rect{}
	if len(head.Layout.WidgetPositions) > 0 && string(head.Layout.WidgetPositions) != "null" {
		if rects, err = decodeRects(head.Layout.WidgetPositions); err != nil {
			return Dashboard{}, err
		}
	}

	d := Dashboard{
		ID:              head.UID,
		Name:            head.Title,
		Icon:            head.Icon,
		RefreshInterval: head.Refresh,
		Widgets:         widgets,
		Layout:          rects,
		NextSeq:         seqAfter(widgets, head.NextSeq),
	}
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
	if d.RefreshInterval == "" {
		d.RefreshInterval = DefaultRefreshInterval
	}
	return d, nil
}
