// Package main provides the entry point for the relay server.
// The server exposes an OpenAI-compatible chat completions endpoint and serves it from
// either a local OpenAI-compatible completion server or the Gemini API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kiosk-llm/relay/internal/api"
	"github.com/kiosk-llm/relay/internal/buildinfo"
	"github.com/kiosk-llm/relay/internal/config"
	"github.com/kiosk-llm/relay/internal/logging"
	"github.com/kiosk-llm/relay/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// cliFlags holds the command-line overrides. Only flags given explicitly are applied.
type cliFlags struct {
	configPath  string
	host        string
	port        int
	backend     string
	llamaBase   string
	geminiModel string
	debug       bool
}

func newFlagSet(name string, flags *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&flags.configPath, "config", DefaultConfigPath, "Configure File Path")
	fs.StringVar(&flags.host, "host", config.DefaultHost, "Listen host")
	fs.IntVar(&flags.port, "port", config.DefaultPort, "Listen port")
	fs.StringVar(&flags.backend, "backend", config.DefaultBackend, "Backend: local|llama|llamacpp or gemini|google|ai_studio|aistudio")
	fs.StringVar(&flags.llamaBase, "llama-base", config.DefaultLocalBaseURL, "Base URL of the local OpenAI-compatible server")
	fs.StringVar(&flags.geminiModel, "gemini-model", config.DefaultGeminiModel, "Gemini model name")
	fs.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	return fs
}

// applyFlagOverrides copies every flag named in set onto cfg.
func applyFlagOverrides(cfg *config.Config, flags *cliFlags, set map[string]bool) {
	if set["host"] {
		cfg.Host = flags.host
	}
	if set["port"] {
		cfg.Port = flags.port
	}
	if set["backend"] {
		cfg.Backend = flags.backend
	}
	if set["llama-base"] {
		cfg.LocalBaseURL = flags.llamaBase
	}
	if set["gemini-model"] {
		cfg.Gemini.Model = flags.geminiModel
	}
	if set["debug"] {
		cfg.Debug = flags.debug
	}
	cfg.Sanitize()
}

// loadConfig resolves the effective configuration: defaults, then the YAML file, then
// environment variables, then explicit flags.
func loadConfig(flags *cliFlags, set map[string]bool, lookup config.LookupFunc) (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(flags.configPath, !set["config"])
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, flags, set)
	return cfg, nil
}

// main is the entry point of the application.
// It parses command-line flags, loads configuration, and serves until SIGINT or SIGTERM.
func main() {
	fmt.Printf("relay Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var flags cliFlags
	fs := newFlagSet(os.Args[0], &flags)
	_ = fs.Parse(os.Args[1:])
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := loadConfig(&flags, set, os.LookupEnv)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	defer logging.CloseLogOutputs()

	log.Infof("relay Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	// Set the log level based on the configuration.
	util.SetLogLevel(cfg)

	if errValidate := cfg.Validate(); errValidate != nil {
		log.Warnf("chat requests will be rejected until the configuration is fixed: %v", errValidate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})
	if errRun := g.Wait(); errRun != nil {
		log.Errorf("relay server failed: %v", errRun)
		logging.CloseLogOutputs()
		os.Exit(1)
	}
}
