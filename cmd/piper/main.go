package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/Piper/internal/invoke"
	"github.com/CZERTAINLY/Piper/internal/log"
	"github.com/CZERTAINLY/Piper/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // piper directory under the OS config dir
	configPath     string // path of the config file in use
	config         model.Config

	flagConfigFilePath string // --config
	flagVerbose        bool   // --verbose
	flagStrict         bool   // run --strict
	flagProfile        string // run --profile
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "piper")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is piper.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	runCmd.Flags().BoolVar(&flagStrict, "strict", false, "treat a non-zero exit code as an error")
	runCmd.Flags().StringVar(&flagProfile, "profile", "", "named profile from profiles.yaml next to the config file")

	// errors are reported once, below
	rootCmd.SilenceErrors = true

	// load or bootstrap the config, then install logging
	rootCmd.PersistentPreRunE = initPiper

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *invoke.ExitError
		if errors.As(err, &exitErr) {
			// strict run mirrors the child's exit code
			os.Exit(exitErr.ExitCode)
		}
		slog.Error("piper failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "piper",
	Short:        "Tool running a single command and relaying its output",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- command [args...]]",
	Short: "run executes the configured command once and delivers its output",
	RunE:  doRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve executes the configured command on a schedule until interrupted",
	RunE:  doServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a piper",
	Run: func(_ *cobra.Command, _ []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("piper: version info not available")
			return
		}

		if configPath != "" {
			fmt.Println("config: " + configPath)
		}
		fmt.Println("piper:  " + info.Main.Version)
		fmt.Println("go:     " + info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Println("commit: " + s.Value)
			case "vcs.time":
				fmt.Println("date:   " + s.Value)
			case "vcs.modified":
				fmt.Println("dirty:  " + s.Value)
			}
		}
		fmt.Println()
	},
}

func initPiper(_ *cobra.Command, _ []string) error {
	configPath = resolveConfigPath()

	var err error
	if configPath == "" {
		configPath = filepath.Join(userConfigPath, "piper.yaml")
		err = writeDefaultConfig(configPath)
	} else {
		err = readConfig(configPath)
	}
	if err != nil {
		return err
	}

	// the flag wins over the config file
	if flagVerbose {
		config.Service.Verbose = true
	}
	slog.SetDefault(log.New(config.Service.Log, config.Service.Verbose))

	slog.Debug("piper starting", "configPath", configPath)
	return nil
}

// resolveConfigPath picks the config file: the PIPERCONFIG variable
// first, then the --config flag, then piper.yaml in the user config
// directory or in the working directory. Empty means nothing found.
func resolveConfigPath() string {
	if env, ok := os.LookupEnv("PIPERCONFIG"); ok {
		return env
	}
	if flagConfigFilePath != "" {
		return flagConfigFilePath
	}
	for _, dir := range []string{userConfigPath, "."} {
		candidate := filepath.Join(dir, "piper.yaml")
		if regularFile(candidate) {
			return candidate
		}
	}
	return ""
}

// writeDefaultConfig stores the default configuration on the first
// start, so a bare piper run works and there is a file to edit.
func writeDefaultConfig(path string) error {
	config = model.DefaultConfig()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	if err := yaml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return nil
}

func readConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cfg, err := model.LoadConfig(f)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.Error("invalid configuration", d.Attr("detail"))
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	config = *cfg
	return nil
}

func regularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
