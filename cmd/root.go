package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	Cd "github.com/maroda/cubeview/display"
	Co "github.com/maroda/cubeview/obvy"
	Cs "github.com/maroda/cubeview/server"
)

var rootCmd = &cobra.Command{
	Use:   "cubeview",
	Short: "Interactive OLAP cube over a shipping dataset",
	Long: "Cubeview holds a three dimensional cube (source, route, time) in memory and " +
		"serves slice, dice, drill, pivot and drill-through operations to a terminal and the web.",
	Version: Cd.Version,
	RunE:    runRoot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootCommand exposes the command tree for tests and embedding
func RootCommand() *cobra.Command { return rootCmd }

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default .cubeview.toml)")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "text", "text or json")
	pf.String("log-file", "cubeview.log", "log destination while the terminal view runs")

	f := rootCmd.Flags()
	f.String("addr", ":8090", "web and metrics listen address")
	f.String("cube-config", "", "cube configuration JSON (default: built-in dataset)")
	f.Bool("tui", false, "run the terminal view alongside the web server")
	f.String("otel", Co.OTelNone, "tracing backend: none, honeycomb or otlp")
	f.String("output", "badger", "snapshot output: badger or memory")
	f.String("export-path", "", "badger directory for exported snapshots (default: in memory)")
	f.Int("history-capacity", Cs.DefaultHistoryCapacity, "operations kept in the history")
	f.Bool("parallel", false, "project cells with one goroutine per source")
	f.String("refresh", "1s", "terminal redraw and websocket push interval")

	_ = viper.BindPFlags(pf)
	_ = viper.BindPFlags(f)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".cubeview")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CUBEVIEW")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// No config file is fine, flags and env still apply
	_ = viper.ReadInConfig()
}

func runRoot(cmd *cobra.Command, args []string) error {
	s, err := LoadSettings()
	if err != nil {
		return err
	}

	closeLog, err := SetupLogging(s)
	if err != nil {
		return err
	}
	defer closeLog()

	if file := viper.ConfigFileUsed(); file != "" {
		slog.Info("Settings loaded", slog.String("file", file))
	}

	shutdown, err := Co.InitOTel(s.OTel)
	if err != nil {
		slog.Error("Could not start tracing", slog.Any("Error", err))
		return err
	}
	defer shutdown()

	cfg, err := LoadCubeConfig(s.CubeConfig)
	if err != nil {
		return err
	}

	stats := Co.NewStatsInternal()
	opts := []Cs.Option{
		Cs.WithHistoryCapacity(s.HistoryCapacity),
		Cs.WithObserver(stats),
		Cs.WithTracer(otel.Tracer("cubeview/engine")),
	}
	if s.Parallel {
		opts = append(opts, Cs.WithParallelProjection())
	}
	cube, err := Cs.NewCube(cfg, opts...)
	if err != nil {
		slog.Error("Could not build cube", slog.Any("Error", err))
		return err
	}

	ds := Cd.Settings{
		Addr:        s.Addr,
		Refresh:     s.RefreshInterval(),
		Output:      s.Output,
		ExportPath:  s.ExportPath,
		CubeOptions: opts,
	}

	if s.TUI {
		return Cd.StartTerminal(cube, stats, ds)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Cd.StartWeb(ctx, cube, stats, ds)
}

// LoadCubeConfig reads the cube configuration file, or the built-in dataset when path is empty
func LoadCubeConfig(path string) (*Cs.Config, error) {
	if path == "" {
		slog.Info("Using built-in cube configuration")
		return Cs.DefaultConfig(), nil
	}

	cf, err := Cs.LoadConfigFileName(path)
	if err != nil {
		slog.Error("Could not load cube configuration",
			slog.String("file", path),
			slog.Any("Error", err))
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg, err := Cs.NewConfig(cf)
	if err != nil {
		slog.Error("Invalid cube configuration",
			slog.String("file", path),
			slog.Any("Error", err))
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// RefreshInterval parses Refresh, falling back to one second
func (s Settings) RefreshInterval() time.Duration {
	d, err := time.ParseDuration(s.Refresh)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}
