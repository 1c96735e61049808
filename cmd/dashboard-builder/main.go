package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wcatz/dashboard-builder/internal/config"
	"github.com/wcatz/dashboard-builder/internal/logging"
	"github.com/wcatz/dashboard-builder/internal/mirror"
	"github.com/wcatz/dashboard-builder/internal/server"
	"github.com/wcatz/dashboard-builder/internal/sink"
	"github.com/wcatz/dashboard-builder/internal/store"
	"github.com/wcatz/dashboard-builder/internal/workspace"
)

var (
	cfgFile      string
	envFiles     []string
	profile      string
	logLevel     string
	storeBackend string
	storePath    string
	mirrorURL    string
	servePort    int
	seedOnStart  bool
	outputFile   string
	widgetData   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dashboard-builder",
		Short:         "grid dashboard builder with persistent storage and a remote mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to YAML config file")
	pf.StringSliceVar(&envFiles, "env-file", nil, "env files to load before the config (default .env)")
	pf.StringVar(&logLevel, "log-level", "", "override log.level")
	pf.StringVar(&storeBackend, "store-backend", "", "override store.backend (memory, file, mongo)")
	pf.StringVar(&storePath, "store-path", "", "override store.path")
	pf.StringVar(&mirrorURL, "mirror-url", "", "override mirror.url")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "start the JSON API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP server port (default server.port)")
	serveCmd.Flags().BoolVar(&seedOnStart, "seed", false, "create configured dashboards before serving")
	serveCmd.Flags().StringVar(&profile, "profile", "", "seed only dashboards in named profile")

	sinkCmd := &cobra.Command{
		Use:   "sink",
		Short: "start a file-backed receiver for mirrored snapshots",
		Args:  cobra.NoArgs,
		RunE:  runSink,
	}
	sinkCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default sink.port)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "create the dashboards defined in the config",
		Args:  cobra.NoArgs,
		RunE:  runSeed,
	}
	seedCmd.Flags().StringVar(&profile, "profile", "", "seed only dashboards in named profile")

	exportCmd := &cobra.Command{
		Use:   "export DASHBOARD",
		Short: "write a dashboard's export document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(
		serveCmd,
		sinkCmd,
		seedCmd,
		&cobra.Command{Use: "list", Short: "list dashboards", Args: cobra.NoArgs, RunE: runList},
		&cobra.Command{Use: "kinds", Short: "list widget kinds and their footprints", Args: cobra.NoArgs, RunE: runKinds},
		&cobra.Command{Use: "create NAME", Short: "create an empty dashboard", Args: cobra.ExactArgs(1), RunE: runCreate},
		&cobra.Command{Use: "rename DASHBOARD NAME", Short: "rename a dashboard", Args: cobra.ExactArgs(2), RunE: runRename},
		&cobra.Command{Use: "delete DASHBOARD", Short: "delete a dashboard", Args: cobra.ExactArgs(1), RunE: runDelete},
		exportCmd,
		&cobra.Command{Use: "import FILE", Short: "import an export document", Args: cobra.ExactArgs(1), RunE: runImport},
		widgetCommand(),
		configCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	cliArgs := make(map[string]string)
	if logLevel != "" {
		cliArgs["log.level"] = logLevel
	}
	if storeBackend != "" {
		cliArgs["store.backend"] = storeBackend
	}
	if storePath != "" {
		cliArgs["store.path"] = storePath
	}
	if mirrorURL != "" {
		cliArgs["mirror.url"] = mirrorURL
	}
	return config.Load(cfgFile, cliArgs)
}

// app holds everything a command needs to work on the workspace.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	ws      *workspace.Workspace
	mirror  *mirror.Mirror
	closers []func(context.Context) error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	s, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	model, err := workspace.ModelFromConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	opts := []workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithStrictImport(cfg.StrictImport()),
	}
	if cfg.Mirror.URL != "" {
		timeout, err := cfg.MirrorTimeout()
		if err != nil {
			a.close()
			return nil, err
		}
		a.mirror = mirror.New(
			mirror.NewClient(cfg.Mirror.URL, cfg.Mirror.Token, timeout),
			logger,
			mirror.WithQueueSize(cfg.Mirror.QueueSize),
			mirror.WithRetries(cfg.Mirror.Retries, time.Second),
		)
		// The mirror drains before the store closes.
		a.closers = append([]func(context.Context) error{a.mirror.Close}, a.closers...)
		opts = append(opts, workspace.WithNotifier(a.mirror))
	}

	a.ws = workspace.New(s, model, opts...)
	if err := a.ws.Load(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, fn := range a.closers {
		if err := fn(ctx); err != nil {
			a.logger.Warn("shutdown", zap.Error(err))
		}
	}
	a.logger.Sync()
}

// withApp runs fn against an opened workspace and releases it afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, args)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if seedOnStart {
		created, err := a.ws.Seed(ctx, a.cfg, profile)
		if err != nil {
			return err
		}
		a.logger.Info("seeded dashboards", zap.Int("created", len(created)))
	}

	if a.mirror != nil {
		every, err := a.cfg.RefreshEvery()
		if err != nil {
			return err
		}
		resync, err := mirror.StartResync(a.ws, a.mirror, every, a.logger)
		if err != nil {
			return err
		}
		defer resync.Stop()
	}

	port := servePort
	if port == 0 {
		port = a.cfg.Server.Port
	}
	srv := server.New(a.ws, a.mirror, a.logger)
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
}

func runSink(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	port := servePort
	if port == 0 {
		port = cfg.Sink.Port
	}
	s := sink.New(cfg.Sink.File, logger)
	return server.Serve(ctx, fmt.Sprintf(":%d", port), s.Handler(), logger)
}

var runSeed = withApp(func(ctx context.Context, a *app, args []string) error {
	created, err := a.ws.Seed(ctx, a.cfg, profile)
	if err != nil {
		return err
	}
	fmt.Println("seeded dashboards:")
	for _, d := range created {
		fmt.Printf("  %s  %s (%d widgets)\n", d.ID, d.Name, len(d.Widgets))
	}
	fmt.Printf("\n  total: %d created\n", len(created))
	return nil
})
