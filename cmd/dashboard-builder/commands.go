package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wcatz/dashboard-builder/internal/config"
	"github.com/wcatz/dashboard-builder/internal/dashboard"
)

var runList = withApp(func(ctx context.Context, a *app, args []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWIDGETS")
	for _, s := range a.ws.List(ctx) {
		d, err := a.ws.Get(ctx, s.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Name, len(d.Widgets))
	}
	return tw.Flush()
})

var runKinds = withApp(func(ctx context.Context, a *app, args []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tW\tH")
	for _, spec := range a.ws.Model().Kinds.Kinds() {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", spec.Kind, spec.DefaultWidth, spec.DefaultHeight)
	}
	return tw.Flush()
})

var runCreate = withApp(func(ctx context.Context, a *app, args []string) error {
	d, err := a.ws.Create(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(d.ID)
	return nil
})

var runRename = withApp(func(ctx context.Context, a *app, args []string) error {
	d, err := a.ws.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = a.ws.Rename(ctx, d.ID, args[1])
	return err
})

var runDelete = withApp(func(ctx context.Context, a *app, args []string) error {
	d, err := a.ws.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return a.ws.Delete(ctx, d.ID)
})

var runExport = withApp(func(ctx context.Context, a *app, args []string) error {
	d, err := a.ws.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	doc, err := a.ws.Export(ctx, d.ID, true)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	data = append(data, '\n')
	if outputFile == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	fmt.Fprintf(os.Stderr, "  wrote %s (%d widgets, %s bytes)\n", outputFile, len(doc.Widgets), formatSize(len(data)))
	return nil
})

var runImport = withApp(func(ctx context.Context, a *app, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	d, err := a.ws.Import(ctx, data)
	if err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}
	fmt.Println(d.ID)
	return nil
})

func widgetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "add, edit, duplicate or remove widgets",
	}

	add := &cobra.Command{
		Use:   "add DASHBOARD KIND",
		Short: "append a widget at the first free slot",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			d, err := a.ws.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			kind := dashboard.Kind(args[1])
			cfg, err := a.ws.Model().Kinds.DecodeConfig(kind, []byte(widgetData))
			if err != nil {
				return err
			}
			d, wid, err := a.ws.AddWidget(ctx, d.ID, kind, cfg)
			if err != nil {
				return err
			}
			r, _ := d.Rect(wid)
			fmt.Printf("%s at (%d,%d) %dx%d\n", wid, r.X, r.Y, r.W, r.H)
			return nil
		}),
	}
	add.Flags().StringVar(&widgetData, "data", "", "widget config as JSON (default: kind defaults)")

	edit := &cobra.Command{
		Use:   "edit DASHBOARD WIDGET",
		Short: "replace a widget's config",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			d, err := a.ws.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			w, ok := d.Widget(args[1])
			if !ok {
				return fmt.Errorf("%w: widget %s", dashboard.ErrNotFound, args[1])
			}
			cfg, err := a.ws.Model().Kinds.DecodeConfig(w.Kind, []byte(widgetData))
			if err != nil {
				return err
			}
			_, err = a.ws.UpdateWidgetConfig(ctx, d.ID, w.ID, cfg)
			return err
		}),
	}
	edit.Flags().StringVar(&widgetData, "data", "", "widget config as JSON")
	edit.MarkFlagRequired("data")

	duplicate := &cobra.Command{
		Use:   "duplicate DASHBOARD WIDGET",
		Short: "copy a widget and its size",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			d, err := a.ws.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			d, wid, err := a.ws.DuplicateWidget(ctx, d.ID, args[1])
			if err != nil {
				return err
			}
			r, _ := d.Rect(wid)
			fmt.Printf("%s at (%d,%d) %dx%d\n", wid, r.X, r.Y, r.W, r.H)
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:   "remove DASHBOARD WIDGET",
		Short: "remove a widget and its rectangle",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			d, err := a.ws.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = a.ws.RemoveWidget(ctx, d.ID, args[1])
			return err
		}),
	}

	cmd.AddCommand(add, edit, duplicate, remove)
	return cmd
}

// configCommand edits the config file in place, keeping its comments.
func configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "inspect and edit the YAML config",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "load the config and report what it defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dashboards, err := cfg.GetDashboards("")
			if err != nil {
				return err
			}
			fmt.Printf("config ok: %d dashboards, %d profiles, store %s, %d columns\n",
				len(dashboards), len(cfg.Profiles), cfg.Store.Backend, cfg.Grid.Columns)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "set a scalar setting such as server.port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := configEditor()
			if err != nil {
				return err
			}
			return editor.SetValue(args[0], args[1])
		},
	}

	footprint := &cobra.Command{
		Use:   "footprint KIND WIDTH HEIGHT",
		Short: "override a widget kind's default size",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := dashboard.NewRegistry().Lookup(dashboard.Kind(args[0])); !ok {
				return fmt.Errorf("%w: unknown widget kind %q", dashboard.ErrValidation, args[0])
			}
			w, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("width: %w", err)
			}
			h, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("height: %w", err)
			}
			editor, err := configEditor()
			if err != nil {
				return err
			}
			return editor.SetFootprint(args[0], w, h)
		},
	}

	var title, icon string
	addDashboard := &cobra.Command{
		Use:   "add-dashboard KEY",
		Short: "add an empty seed dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := configEditor()
			if err != nil {
				return err
			}
			return editor.AddDashboard(args[0], config.DashboardConfig{Title: title, Icon: icon})
		},
	}
	addDashboard.Flags().StringVar(&title, "title", "", "dashboard title (default KEY)")
	addDashboard.Flags().StringVar(&icon, "icon", "", "dashboard icon")

	removeDashboard := &cobra.Command{
		Use:   "remove-dashboard KEY",
		Short: "remove a seed dashboard and its profile references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			editor, err := configEditor()
			if err != nil {
				return err
			}
			return editor.DeleteDashboard(args[0])
		},
	}

	cmd.AddCommand(validate, set, footprint, addDashboard, removeDashboard)
	return cmd
}

func configEditor() (*config.YAMLEditor, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.NewYAMLEditor(cfgFile), nil
}

// formatSize renders n with thousands separators.
func formatSize(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, s[i])
	}
	return string(result)
}
