package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/autoformfill/formfill/internal/config"
	"github.com/autoformfill/formfill/internal/match"
	"github.com/autoformfill/formfill/internal/mcp"
	"github.com/autoformfill/formfill/internal/pipeline"
	"github.com/autoformfill/formfill/internal/template"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the run mode.
func setupLogging(cfg *config.Config) {
	if cfg.IsServeMode() {
		// In serve mode, keep stdout clean for the MCP protocol.
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(os.NewFile(0, os.DevNull))
		}
		return
	}
	if cfg.IsDebug() {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(0)
	}
}

// buildMatcher returns the automatic-matching capability, or nil when
// no template library is configured.
func buildMatcher(cfg *config.Config) template.Matcher {
	if cfg.TemplatesDir == "" {
		return nil
	}
	return match.NewLibraryMatcher(cfg.TemplatesDir, log.Default())
}

// runFill executes one pipeline run and prints the success summary.
func runFill(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline) error {
	result, err := pipe.Run(ctx, pipeline.Request{
		ImagePath:    cfg.ImagePath,
		TemplatePath: cfg.TemplatePath,
		OutputPath:   cfg.OutputPath,
		DataPath:     cfg.DataPath,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nForm fill completed successfully")
	fmt.Println("Summary:")
	fmt.Printf("  Input image: %s\n", result.ImagePath)
	if result.Matched {
		fmt.Println("  Template: matched automatically")
	} else {
		fmt.Printf("  Template: %s\n", result.TemplatePath)
	}
	fmt.Printf("  Fields processed: %d\n", result.FieldCount)
	fmt.Printf("  Output saved: %s\n", result.OutputPath)
	if result.OverrideCount > 0 {
		fmt.Printf("  Override values: %d\n", result.OverrideCount)
	}
	return nil
}

// runServe starts the MCP stdio server.
func runServe(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, matcher template.Matcher) error {
	server, err := mcp.NewServer(cfg, pipe, matcher)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

// reportFailure prints a distinguishing diagnostic for every failure
// class before the non-zero exit.
func reportFailure(err error) {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
	case errors.As(err, &stageErr):
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", stageErr)
	default:
		fmt.Fprintf(os.Stderr, "FATAL ERROR: %v\n", err)
	}
}

func run() error {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		return err
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() && !cfg.IsServeMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	matcher := buildMatcher(cfg)

	pipe, err := pipeline.New(
		pipeline.WithMatcher(matcher),
		pipeline.WithDebug(cfg.IsDebug()),
		pipeline.WithLanguages(cfg.Languages...),
	)
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM cancel the run; the pipeline reports the
	// interruption as a distinct cancelled failure.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsServeMode() {
		return runServe(ctx, cfg, pipe, matcher)
	}
	return runFill(ctx, cfg, pipe)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	if err := run(); err != nil {
		reportFailure(err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("formfill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
