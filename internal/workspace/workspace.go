// Package workspace holds the collection of dashboards, persists every
// change to a store and announces it to a notifier.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/dashboard"
	"github.com/wcatz/dashboard-builder/internal/layout"
	"github.com/wcatz/dashboard-builder/internal/store"
)

// SummariesKey is the reserved store key listing every dashboard.
const SummariesKey = "dashboards"

// Summary identifies a dashboard in listings.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Notifier receives the snapshot of every dashboard after it changes.
// Publish must not block.
type Notifier interface {
	Publish(snap dashboard.Snapshot)
}

// Workspace is the set of dashboards. The in-memory collection is
// authoritative; store writes and notifications happen after each change and
// their failures are logged rather than undoing it. Mutations are serialized.
type Workspace struct {
	mu         sync.Mutex
	store      store.Store
	model      *dashboard.Model
	notifier   Notifier
	logger     *zap.Logger
	strict     bool
	dashboards map[string]dashboard.Dashboard
	order      []string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(w *Workspace) { w.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// WithStrictImport makes Import re-check the imported layout.
func WithStrictImport(strict bool) Option {
	return func(w *Workspace) { w.strict = strict }
}

// New creates an empty workspace over s. Call Load to read existing
// dashboards from the store.
func New(s store.Store, model *dashboard.Model, opts ...Option) *Workspace {
	if model == nil {
		model = dashboard.NewModel(nil, nil)
	}
	w := &Workspace{
		store:      s,
		model:      model,
		logger:     zap.NewNop(),
		strict:     true,
		dashboards: make(map[string]dashboard.Dashboard),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Model returns the model the workspace applies operations with.
func (w *Workspace) Model() *dashboard.Model {
	return w.model
}

// Load replaces the in-memory collection with the dashboards listed in the
// store's summaries. Listed dashboards whose snapshot is missing or
// unreadable are skipped and dropped from the summaries.
func (w *Workspace) Load(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	summaries, err := w.readSummaries(ctx)
	if err != nil {
		return err
	}

	w.dashboards = make(map[string]dashboard.Dashboard, len(summaries))
	w.order = w.order[:0]
	dropped := false
	for _, s := range summaries {
		data, err := w.store.Get(ctx, s.ID)
		if err != nil {
			w.logger.Warn("dashboard listed but not stored", zap.String("id", s.ID), zap.Error(err))
			dropped = true
			continue
		}
		d, err := w.model.FromSnapshot(data)
		if err != nil {
			w.logger.Warn("skipping unreadable dashboard", zap.String("id", s.ID), zap.Error(err))
			dropped = true
			continue
		}
		if _, dup := w.dashboards[d.ID]; dup {
			continue
		}
		w.dashboards[d.ID] = d
		w.order = append(w.order, d.ID)
	}
	if dropped {
		w.writeSummaries(ctx)
	}
	w.logger.Info("workspace loaded", zap.Int("dashboards", len(w.order)))
	return nil
}

func (w *Workspace) readSummaries(ctx context.Context) ([]Summary, error) {
	data, err := w.store.Get(ctx, SummariesKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading summaries: %w", err)
	}
	var summaries []Summary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("decoding summaries: %w", err)
	}
	return summaries, nil
}

func (w *Workspace) summaries() []Summary {
	out := make([]Summary, 0, len(w.order))
	for _, id := range w.order {
		d := w.dashboards[id]
		out = append(out, Summary{ID: d.ID, Name: d.Name, Icon: d.Icon})
	}
	return out
}

func (w *Workspace) writeSummaries(ctx context.Context) {
	data, err := json.Marshal(w.summaries())
	if err == nil {
		err = w.store.Set(ctx, SummariesKey, data)
	}
	if err != nil {
		w.logger.Error("persisting summaries failed", zap.Error(err))
	}
}

func (w *Workspace) snapshot(d dashboard.Dashboard) ([]byte, dashboard.Snapshot, error) {
	snap := dashboard.ToSnapshot(d, w.model.Columns())
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, snap, fmt.Errorf("encoding dashboard %s: %w", d.ID, err)
	}
	return data, snap, nil
}

// persist writes d and publishes it. Failures are logged.
func (w *Workspace) persist(ctx context.Context, d dashboard.Dashboard, summariesChanged bool) {
	data, snap, err := w.snapshot(d)
	if err == nil {
		err = w.store.Set(ctx, d.ID, data)
	}
	if err != nil {
		w.logger.Error("persisting dashboard failed", zap.String("id", d.ID), zap.Error(err))
	}
	if summariesChanged {
		w.writeSummaries(ctx)
	}
	w.publish(snap)
}

func (w *Workspace) publish(snap dashboard.Snapshot) {
	if w.notifier != nil {
		w.notifier.Publish(snap)
	}
}

// add stores a new dashboard. A failed write is returned because nothing
// was visible before it.
func (w *Workspace) add(ctx context.Context, d dashboard.Dashboard) error {
	data, snap, err := w.snapshot(d)
	if err != nil {
		return err
	}
	if err := w.store.Set(ctx, d.ID, data); err != nil {
		return fmt.Errorf("storing dashboard %s: %w", d.ID, err)
	}
	w.dashboards[d.ID] = d
	w.order = append(w.order, d.ID)
	w.writeSummaries(ctx)
	w.publish(snap)
	return nil
}

func (w *Workspace) lookup(id string) (dashboard.Dashboard, error) {
	d, ok := w.dashboards[id]
	if !ok {
		return dashboard.Dashboard{}, fmt.Errorf("%w: dashboard %s", dashboard.ErrNotFound, id)
	}
	return d, nil
}

// Create adds an empty dashboard.
func (w *Workspace) Create(ctx context.Context, name string) (dashboard.Dashboard, error) {
	d, err := dashboard.New(name)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.add(ctx, d); err != nil {
		return dashboard.Dashboard{}, err
	}
	w.logger.Info("dashboard created", zap.String("id", d.ID), zap.String("name", d.Name))
	return d, nil
}

// Get returns a dashboard by id.
func (w *Workspace) Get(_ context.Context, id string) (dashboard.Dashboard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup(id)
}

// List returns the summaries of every dashboard in creation order.
func (w *Workspace) List(_ context.Context) []Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summaries()
}

// Snapshots returns the persisted form of every dashboard.
func (w *Workspace) Snapshots(_ context.Context) []dashboard.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]dashboard.Snapshot, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, dashboard.ToSnapshot(w.dashboards[id], w.model.Columns()))
	}
	return out
}

// Delete removes a dashboard and asks the store to drop its snapshot.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.lookup(id); err != nil {
		return err
	}
	delete(w.dashboards, id)
	for i, o := range w.order {
		if o == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	if err := w.store.Delete(ctx, id); err != nil {
		w.logger.Error("deleting stored dashboard failed", zap.String("id", id), zap.Error(err))
	}
	w.writeSummaries(ctx)
	w.logger.Info("dashboard deleted", zap.String("id", id))
	return nil
}

// update applies fn to a dashboard and commits the result.
func (w *Workspace) update(ctx context.Context, id string, fn func(dashboard.Dashboard) (dashboard.Dashboard, error)) (dashboard.Dashboard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.lookup(id)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	out, err := fn(d)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	w.dashboards[id] = out
	w.persist(ctx, out, out.Name != d.Name || out.Icon != d.Icon)
	return out, nil
}

// Update renames a dashboard and/or changes its icon in one commit. A nil
// field is left as it is.
func (w *Workspace) Update(ctx context.Context, id string, name, icon *string) (dashboard.Dashboard, error) {
	if name == nil && icon == nil {
		return w.Get(ctx, id)
	}
	return w.update(ctx, id, func(d dashboard.Dashboard) (dashboard.Dashboard, error) {
		if name != nil {
			var err error
			if d, err = dashboard.Rename(d, *name); err != nil {
				return d, err
			}
		}
		if icon != nil {
			d.Icon = *icon
			if d.Icon == "" {
				d.Icon = dashboard.DefaultIcon
			}
		}
		return d, nil
	})
}

// Rename changes a dashboard's name.
func (w *Workspace) Rename(ctx context.Context, id, name string) (dashboard.Dashboard, error) {
	return w.Update(ctx, id, &name, nil)
}

// SetIcon changes the icon shown next to a dashboard.
func (w *Workspace) SetIcon(ctx context.Context, id, icon string) (dashboard.Dashboard, error) {
	return w.Update(ctx, id, nil, &icon)
}

// AddWidget places a new widget. A nil cfg selects the kind's defaults.
func (w *Workspace) AddWidget(ctx context.Context, id string, kind dashboard.Kind, cfg dashboard.Config) (dashboard.Dashboard, string, error) {
	var widgetID string
	d, err := w.update(ctx, id, func(d dashboard.Dashboard) (dashboard.Dashboard, error) {
		out, wid, err := w.model.AddWidget(d, kind, cfg)
		widgetID = wid
		return out, err
	})
	if err != nil {
		return dashboard.Dashboard{}, "", err
	}
	w.logger.Debug("widget added", zap.String("dashboard", id), zap.String("widget", widgetID), zap.String("kind", string(kind)))
	return d, widgetID, nil
}

// DuplicateWidget copies a widget.
func (w *Workspace) DuplicateWidget(ctx context.Context, id, widgetID string) (dashboard.Dashboard, string, error) {
	var newID string
	d, err := w.update(ctx, id, func(d dashboard.Dashboard) (dashboard.Dashboard, error) {
		out, wid, err := w.model.DuplicateWidget(d, widgetID)
		newID = wid
		return out, err
	})
	if err != nil {
		return dashboard.Dashboard{}, "", err
	}
	return d, newID, nil
}

// RemoveWidget deletes a widget. Removing an absent widget changes nothing
// and is not an error.
func (w *Workspace) RemoveWidget(ctx context.Context, id, widgetID string) (dashboard.Dashboard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.lookup(id)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	out := dashboard.RemoveWidget(d, widgetID)
	if len(out.Widgets) == len(d.Widgets) && len(out.Layout) == len(d.Layout) {
		return d, nil
	}
	w.dashboards[id] = out
	w.persist(ctx, out, false)
	return out, nil
}

// UpdateWidgetConfig replaces a widget's config.
func (w *Workspace) UpdateWidgetConfig(ctx context.Context, id, widgetID string, cfg dashboard.Config) (dashboard.Dashboard, error) {
	return w.update(ctx, id, func(d dashboard.Dashboard) (dashboard.Dashboard, error) {
		return dashboard.UpdateWidgetConfig(d, widgetID, cfg)
	})
}

// ApplyLayout replaces a dashboard's layout.
func (w *Workspace) ApplyLayout(ctx context.Context, id string, rects []layout.Rect) (dashboard.Dashboard, error) {
	return w.update(ctx, id, func(d dashboard.Dashboard) (dashboard.Dashboard, error) {
		return w.model.ApplyLayout(d, rects)
	})
}

// Export returns the export document of a dashboard. With requireWidgets set
// an empty dashboard is refused.
func (w *Workspace) Export(ctx context.Context, id string, requireWidgets bool) (dashboard.ExportDocument, error) {
	d, err := w.Get(ctx, id)
	if err != nil {
		return dashboard.ExportDocument{}, err
	}
	if requireWidgets && len(d.Widgets) == 0 {
		return dashboard.ExportDocument{}, fmt.Errorf("%w: dashboard %s has no widgets to export", dashboard.ErrValidation, id)
	}
	return dashboard.Export(d), nil
}

// Import adds a dashboard decoded from an export document. On failure the
// workspace is unchanged.
func (w *Workspace) Import(ctx context.Context, data []byte) (dashboard.Dashboard, error) {
	d, err := w.model.Import(data, w.strict)
	if err != nil {
		return dashboard.Dashboard{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.add(ctx, d); err != nil {
		return dashboard.Dashboard{}, err
	}
	w.logger.Info("dashboard imported", zap.String("id", d.ID), zap.String("name", d.Name), zap.Int("widgets", len(d.Widgets)))
	return d, nil
}

// Resolve finds a dashboard by id, or failing that by name. A name shared
// by several dashboards is rejected.
func (w *Workspace) Resolve(_ context.Context, ref string) (dashboard.Dashboard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.dashboards[ref]; ok {
		return d, nil
	}
	var matches []string
	for _, id := range w.order {
		if w.dashboards[id].Name == ref {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return dashboard.Dashboard{}, fmt.Errorf("%w: dashboard %s", dashboard.ErrNotFound, ref)
	case 1:
		return w.dashboards[matches[0]], nil
	}
	return dashboard.Dashboard{}, fmt.Errorf("%w: %d dashboards are named %q, use an id", dashboard.ErrValidation, len(matches), ref)
}
