package dashboard

import (
	"encoding/json"
	"fmt"
)

// Widget is one panel of a dashboard. Config is treated as immutable once
// attached: edits replace it rather than change it in place.
type Widget struct {
	ID     string
	Kind   Kind
	Config Config
	// Extra holds top-level wire fields this package does not model, kept so
	// documents written by other clients survive a round trip.
	Extra map[string]json.RawMessage
}

var reservedWidgetKeys = map[string]bool{"id": true, "type": true, "data": true}

// MarshalJSON encodes the widget as {id, type, data, ...extra}.
func (w Widget) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(w.Extra)+3)
	for k, v := range w.Extra {
		if !reservedWidgetKeys[k] {
			out[k] = v
		}
	}
	out["id"] = w.ID
	out["type"] = w.Kind
	out["data"] = w.Config
	return json.Marshal(out)
}

// DecodeWidget decodes one wire widget. IDs and known kinds are required;
// when validate is set the config must also pass its kind's checks.
func (r *Registry) DecodeWidget(raw json.RawMessage, validate bool) (Widget, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Widget{}, fmt.Errorf("%w: widget: %v", ErrMalformedDocument, err)
	}

	var w Widget
	if err := json.Unmarshal(fields["id"], &w.ID); err != nil || w.ID == "" {
		return Widget{}, fmt.Errorf("%w: widget without id", ErrMalformedDocument)
	}
	if err := json.Unmarshal(fields["type"], &w.Kind); err != nil {
		return Widget{}, fmt.Errorf("%w: widget %s without type", ErrMalformedDocument, w.ID)
	}
	if _, ok := r.Lookup(w.Kind); !ok {
		return Widget{}, fmt.Errorf("%w: widget %s has unknown type %q", ErrMalformedDocument, w.ID, w.Kind)
	}
	cfg, err := r.decodeExact(w.Kind, fields["data"], validate)
	if err != nil {
		return Widget{}, fmt.Errorf("widget %s: %w", w.ID, err)
	}
	w.Config = cfg

	for k, v := range fields {
		if reservedWidgetKeys[k] {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]json.RawMessage)
		}
		w.Extra[k] = v
	}
	return w, nil
}
