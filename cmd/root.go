package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/msalah0e/ripple/internal/config"
	"github.com/msalah0e/ripple/internal/energy"
	"github.com/msalah0e/ripple/internal/engine"
	"github.com/msalah0e/ripple/internal/logging"
	"github.com/msalah0e/ripple/internal/scene"
	"github.com/msalah0e/ripple/internal/ui"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

var (
	scenesFS fs.FS
	cfg      *config.Config

	cfgPath  string
	logLevel string
	noColor  bool
)

// SetScenesFS sets the filesystem holding the built-in scenes under scenes/.
func SetScenesFS(f fs.FS) {
	scenesFS = f
}

var rootCmd = &cobra.Command{
	Use:   "ripple",
	Short: "ripple: staged energy cascades over node graphs",
	Long: ui.Brand.Sprint(ui.Wave+" ripple") + ": watch excitement and dampening spread through a scene\n" +
		ui.Subtle.Sprint("Plan, run, watch, and stream hop-by-hop cascades"),
	Version:          version,
	SilenceUsage:     true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		c, err := loadConfig()
		if err != nil {
			fail("config: %v", err)
		}
		cfg = c
		if noColor || !cfg.UI.Color {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("ripple {{ .Version }}\n")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		planCmd(),
		runCmd(),
		watchCmd(),
		serveCmd(),
		validateCmd(),
		scenesCmd(),
		traceCmd(),
		configCmd(),
		completionCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFile(cfgPath)
	}
	return config.Load()
}

func currentConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// fail prints an error and exits.
func fail(format string, args ...any) {
	ui.Bad.Fprintf(os.Stderr, "ripple: "+format+"\n", args...)
	os.Exit(1)
}

func newLogger(w io.Writer) *slog.Logger {
	c := currentConfig()
	level := c.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.New(w, level, c.Log.Format)
	if err != nil {
		fail("log: %v", err)
	}
	return logger
}

func engineOptions(logger *slog.Logger) engine.Options {
	c := currentConfig()
	return engine.Options{
		Proximity:        c.ProximityModel(),
		Style:            c.VisualStyle(),
		StepInterval:     c.StepInterval(),
		Debounce:         c.Debounce(),
		IgnitionLifetime: c.IgnitionLifetime(),
		LiveDepth:        c.Cascade.LiveDepth,
		Logger:           logger,
	}
}

func builtinScenes() ([]*scene.Doc, error) {
	if scenesFS == nil {
		return nil, nil
	}
	return scene.LoadFromFS(scenesFS, "scenes")
}

// resolveScene accepts either a path to a YAML file or a built-in scene name.
func resolveScene(arg string) (*scene.Doc, error) {
	ext := strings.ToLower(filepath.Ext(arg))
	if ext == ".yaml" || ext == ".yml" {
		return scene.LoadFile(arg)
	}
	docs, err := builtinScenes()
	if err != nil {
		return nil, err
	}
	if d, ok := scene.Find(docs, arg); ok {
		return d, nil
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	return nil, fmt.Errorf("unknown scene %q (built-in: %s)", arg, strings.Join(names, ", "))
}

func loadScene(arg string) (*scene.Doc, *scene.Registry) {
	doc, err := resolveScene(arg)
	if err != nil {
		fail("%v", err)
	}
	reg, err := doc.Build()
	if err != nil {
		fail("scene %s: %v", doc.Name, err)
	}
	return doc, reg
}

func viewerFlag(cmd *cobra.Command, v *string) {
	cmd.Flags().StringVar(v, "viewer", string(scene.DefaultViewer), "Viewer to run")
}

func viewerID(v string) energy.ViewerID {
	return energy.ViewerID(v)
}
