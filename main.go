package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamresolver/config"
	"streamresolver/models"
	"streamresolver/services/debrid"
	"streamresolver/services/streams"
)

var (
	configPath     string
	providerFilter []string
	preferProvider string
)

var rootCmd = &cobra.Command{
	Use:           "streamresolver",
	Short:         "Resolve catalog ids into ranked debrid stream URLs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var streamsCmd = &cobra.Command{
	Use:   "streams <movie|series> <id> [season] [episode]",
	Short: "List ranked, cached streams for a movie or an episode",
	Args:  cobra.RangeArgs(2, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := identityFromArgs(args)
		if err != nil {
			return err
		}
		return withEngine(cmd.Context(), func(ctx context.Context, engine *streams.Engine) error {
			ranked, err := engine.GetRankedStreams(ctx, identity, providerFilter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ranked)
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <hash|magnet|token>",
	Short: "Resolve one stream into a playable URL through the provider cascade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, engine *streams.Engine) error {
			result, err := engine.Resolve(ctx, args[0], preferProvider)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered provider tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), debrid.DefaultRegistry.List())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
	streamsCmd.Flags().StringSliceVar(&providerFilter, "providers", nil, "provider tags to check (default: all configured)")
	resolveCmd.Flags().StringVar(&preferProvider, "prefer", "", "provider tag to try first")

	rootCmd.AddCommand(streamsCmd, resolveCmd, providersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// withEngine loads settings, configures logging and runs fn against a freshly built engine.
func withEngine(ctx context.Context, fn func(context.Context, *streams.Engine) error) error {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	if path == "" {
		path = config.DefaultConfigPath
	}

	cfgManager := config.NewManager(path)
	settings, err := cfgManager.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	setupLogging(settings.Log)

	engine, err := streams.NewFromSettings(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Printf("[engine] close: %v", err)
		}
	}()

	return fn(ctx, engine)
}

// setupLogging sends the standard logger to a rotating file. Console output goes to stderr
// so command output on stdout stays machine-readable.
func setupLogging(cfg config.LogConfig) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stderr)
	if cfg.File == "" {
		return
	}

	logDir := filepath.Dir(cfg.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		return
	}
	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileWriter))
	log.Printf("Logging to file: %s", cfg.File)
}

func identityFromArgs(args []string) (models.ContentIdentity, error) {
	mediaType := models.MediaType(strings.ToLower(args[0]))
	if mediaType == models.MediaTypeSeries && len(args) == 2 {
		// tt0903747:2:5 form
		return models.ParseStremioID(mediaType, args[1])
	}

	var season, episode int
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return models.ContentIdentity{}, fmt.Errorf("season %q: %w", args[2], err)
		}
		season = n
	}
	if len(args) > 3 {
		n, err := strconv.Atoi(args[3])
		if err != nil {
			return models.ContentIdentity{}, fmt.Errorf("episode %q: %w", args[3], err)
		}
		episode = n
	}
	return models.NewContentIdentity(mediaType, args[1], season, episode)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
