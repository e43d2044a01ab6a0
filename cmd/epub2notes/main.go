package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yuanying/epub2notes/internal/converter"
)

const (
	defaultJPEGQuality   = 85
	defaultMaxImageWidth = 800
	minJPEGQuality       = 60
	maxJPEGQuality       = 100
	envPrefix            = "EPUB2NOTES"
	configName           = "epub2notes"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "epub2notes <book.epub>",
		Short: "Convert EPUB books into linked markdown notes",
		Long: `epub2notes reconstructs the logical structure of an EPUB book
(front matter, prologue, parts, chapters, epilogue, back matter) from its
spine and writes one markdown note per segment, plus an index note.

Books whose files do not line up with chapters are handled: chapter-number
pages are merged with their text, and single files holding several chapters
are split.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, args)
			if err != nil {
				return err
			}

			opts.Logger.Info("converting", "input", opts.InputPath, "output", opts.OutputDir)
			result, err := converter.NewPipeline(opts).Convert(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversion failed: %w", err)
			}
			opts.Logger.Info("done", "dir", result.Dir, "notes", len(result.Notes))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("output", "o", "", "Output directory; the book gets its own subdirectory (default: the input's directory)")
	flags.String("config", "", "Config file (default: epub2notes.yaml in . or ~/.config/epub2notes)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")
	flags.Bool("strict", false, "Fail on EPUB container problems instead of warning")
	flags.Bool("no-images", false, "Drop images instead of exporting them as attachments")
	flags.Int("max-image-width", defaultMaxImageWidth, "Maximum image width in pixels")
	flags.Int("quality", defaultJPEGQuality, "JPEG quality (60-100)")
	flags.Int("max-image-size", 0, "Maximum image size in KB (0: no limit)")
	flags.Int("workers", 0, "Documents analyzed in parallel (0: one per CPU)")
	flags.Bool("dry-run", false, "Classify and render without writing any file")

	rootCmd.AddCommand(newClassifyCmd())
	return rootCmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <book.epub>",
		Short: "Print the reconstructed book structure as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(cmd, args)
			if err != nil {
				return err
			}

			classification, err := converter.NewPipeline(opts).Classify(cmd.Context())
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(classification); err != nil {
				return fmt.Errorf("failed to encode classification: %w", err)
			}
			return enc.Close()
		},
	}
}

func loadOptions(cmd *cobra.Command, args []string) (converter.ConvertOptions, error) {
	v, err := loadConfig(cmd)
	if err != nil {
		return converter.ConvertOptions{}, err
	}
	return readCLIOptions(cmd, v, args)
}

// loadConfig layers flags over EPUB2NOTES_* environment variables over the
// config file. Every command shares the root's persistent flags.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgFile := v.GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

func readCLIOptions(cmd *cobra.Command, v *viper.Viper, args []string) (converter.ConvertOptions, error) {
	inputPath := args[0]

	quality := v.GetInt("quality")
	if quality < minJPEGQuality || quality > maxJPEGQuality {
		return converter.ConvertOptions{}, fmt.Errorf("--quality must be between %d and %d", minJPEGQuality, maxJPEGQuality)
	}

	maxImageWidth := v.GetInt("max-image-width")
	if maxImageWidth <= 0 {
		return converter.ConvertOptions{}, fmt.Errorf("--max-image-width must be greater than 0")
	}

	maxImageSizeKB := v.GetInt("max-image-size")
	if maxImageSizeKB < 0 {
		return converter.ConvertOptions{}, fmt.Errorf("--max-image-size must not be negative")
	}

	workers := v.GetInt("workers")
	if workers < 0 {
		return converter.ConvertOptions{}, fmt.Errorf("--workers must not be negative")
	}

	logLevel := strings.ToLower(v.GetString("log-level"))
	if _, ok := parseLogLevel(logLevel); !ok {
		return converter.ConvertOptions{}, fmt.Errorf("--log-level must be one of: debug, info, warn, error")
	}
	if v.GetBool("verbose") {
		logLevel = "debug"
	}

	logFormat := strings.ToLower(v.GetString("log-format"))
	if logFormat != "text" && logFormat != "json" {
		return converter.ConvertOptions{}, fmt.Errorf("--log-format must be one of: text, json")
	}

	return converter.ConvertOptions{
		InputPath:         inputPath,
		OutputDir:         v.GetString("output"),
		Logger:            buildLogger(cmd.ErrOrStderr(), logLevel, logFormat),
		Strict:            v.GetBool("strict"),
		NoImages:          v.GetBool("no-images"),
		MaxImageWidth:     maxImageWidth,
		JPEGQuality:       quality,
		MaxImageSizeBytes: maxImageSizeKB * 1024,
		Workers:           workers,
		DryRun:            v.GetBool("dry-run"),
	}, nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch level {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(strings.ToLower(level))
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
