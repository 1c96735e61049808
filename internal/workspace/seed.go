package workspace

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/config"
	"github.com/wcatz/dashboard-builder/internal/dashboard"
	"github.com/wcatz/dashboard-builder/internal/layout"
)

// ModelFromConfig builds the dashboard model for the grid and kind settings.
func ModelFromConfig(cfg *config.Config) (*dashboard.Model, error) {
	kinds := dashboard.NewRegistry()
	for kind, fp := range cfg.Kinds {
		if err := kinds.SetFootprint(dashboard.Kind(kind), fp.Width, fp.Height); err != nil {
			return nil, fmt.Errorf("kinds.%s: %w", kind, err)
		}
	}
	m := dashboard.NewModel(kinds, layout.NewEngine(cfg.Grid.Columns, cfg.FullHeightScan()))
	m.PackDuplicates = cfg.Grid.PackDuplicates
	return m, nil
}

// Seed creates the dashboards defined in cfg, optionally limited to a
// profile, in file order. A seed whose title matches an existing dashboard
// is skipped, so seeding twice does not duplicate anything.
func (w *Workspace) Seed(ctx context.Context, cfg *config.Config, profile string) ([]dashboard.Dashboard, error) {
	seeds, err := cfg.GetDashboards(profile)
	if err != nil {
		return nil, err
	}
	order, err := cfg.GetDashboardOrder(profile)
	if err != nil {
		return nil, err
	}

	// build everything first so a bad seed leaves the workspace untouched
	var built []dashboard.Dashboard
	for _, key := range order {
		seed, ok := seeds[key]
		if !ok {
			continue
		}
		d, err := w.buildSeed(key, seed)
		if err != nil {
			return nil, fmt.Errorf("seed '%s': %w", key, err)
		}
		built = append(built, d)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	existing := make(map[string]bool, len(w.order))
	for _, id := range w.order {
		existing[w.dashboards[id].Name] = true
	}

	var created []dashboard.Dashboard
	for _, d := range built {
		if existing[d.Name] {
			w.logger.Info("seed already present", zap.String("name", d.Name))
			continue
		}
		if err := w.add(ctx, d); err != nil {
			return created, err
		}
		existing[d.Name] = true
		created = append(created, d)
		w.logger.Info("dashboard seeded", zap.String("id", d.ID), zap.String("name", d.Name), zap.Int("widgets", len(d.Widgets)))
	}
	return created, nil
}

func (w *Workspace) buildSeed(key string, seed config.DashboardConfig) (dashboard.Dashboard, error) {
	title := seed.Title
	if title == "" {
		title = key
	}
	d, err := dashboard.New(title)
	if err != nil {
		return d, err
	}
	if seed.Icon != "" {
		d.Icon = seed.Icon
	}
	if seed.RefreshInterval != "" {
		d.RefreshInterval = seed.RefreshInterval
	}

	for i, ws := range seed.Widgets {
		kind := dashboard.Kind(ws.Type)
		var raw []byte
		if len(ws.Data) > 0 {
			if raw, err = json.Marshal(ws.Data); err != nil {
				return d, fmt.Errorf("widget %d: %w", i, err)
			}
		}
		cfg, err := w.model.Kinds.DecodeConfig(kind, raw)
		if err != nil {
			return d, fmt.Errorf("widget %d: %w", i, err)
		}
		if d, _, err = w.model.AddWidget(d, kind, cfg); err != nil {
			return d, fmt.Errorf("widget %d: %w", i, err)
		}
	}
	return d, nil
}
