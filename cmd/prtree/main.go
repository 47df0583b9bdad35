package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drewdunne/prtree/internal/config"
	"github.com/drewdunne/prtree/internal/logging"
	"github.com/drewdunne/prtree/internal/metrics"
	"github.com/drewdunne/prtree/internal/provider"
	githubprovider "github.com/drewdunne/prtree/internal/provider/github"
	gitlabprovider "github.com/drewdunne/prtree/internal/provider/gitlab"
	"github.com/drewdunne/prtree/internal/snapshot"
	"github.com/joho/godotenv"
)

var version = "0.1.0"

const defaultConfigPath = "prtree.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: prtree [options] <pr_number> <output_dir>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Downloads the base and head trees of a pull request into")
	fmt.Fprintln(w, "<output_dir>/before and <output_dir>/after.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.PrintDefaults()
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prtree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (default "+defaultConfigPath+" if present)")
	envFile := fs.String("env-file", "", "Path to .env file (optional)")
	showVersion := fs.Bool("version", false, "Print version information")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		fmt.Fprintf(stdout, "prtree v%s\n", version)
		return 0
	}

	if fs.NArg() != 2 {
		printUsage(stderr, fs)
		return 1
	}

	number, err := provider.ParseNumber(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr, fs)
		return 1
	}
	outputDir := fs.Arg(1)

	log.SetOutput(stderr)

	// Load .env file if specified or exists
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("Warning: could not load env file %s: %v", *envFile, err)
		}
	} else {
		godotenv.Load(".env")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid config: %v", err)
		return 1
	}

	if cfg.Logging.Dir != "" {
		setupRunLog(cfg, number, stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newProvider(cfg)
	log.Printf("Fetching %s/%s #%d from %s", cfg.Repository.Owner, cfg.Repository.Name, number, p.Name())

	fetcher := snapshot.New(p, cfg.Repository.Owner, cfg.Repository.Name,
		snapshot.WithStrict(cfg.Extract.Strict),
		snapshot.WithProgress(cfg.Extract.Progress),
		snapshot.WithOutput(stdout),
	)
	if _, err := fetcher.Run(ctx, number, outputDir); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	m := metrics.Get()
	log.Printf("Fetched %d archives (%d bytes), extracted %d files, skipped %d members",
		m.ArchivesFetched, m.BytesDownloaded, m.FilesExtracted, m.MembersSkipped)
	return 0
}

// loadConfig loads an explicit config file, or the default one when present.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOptional(defaultConfigPath)
}

// setupRunLog prunes expired run logs and tees the standard logger into a
// new log file for this run. Failures only cost the log file.
func setupRunLog(cfg *config.Config, number int, stderr io.Writer) {
	cleaner := logging.NewCleaner(cfg.Logging.Dir, cfg.Logging.RetentionDays)
	if deleted, err := cleaner.Cleanup(); err != nil {
		log.Printf("Cleanup error: %v", err)
	} else if deleted > 0 {
		log.Printf("Cleaned up %d old log files", deleted)
	}

	writer := logging.NewWriter(cfg.Logging.Dir)
	path, err := writer.Create(logging.RunEntry{
		Provider:  cfg.Provider,
		RepoOwner: cfg.Repository.Owner,
		RepoName:  cfg.Repository.Name,
		PRNumber:  number,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("Warning: run log disabled: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(stderr, writer.Sink(path)))
}

// newProvider builds the configured provider client.
func newProvider(cfg *config.Config) provider.Provider {
	switch cfg.Provider {
	case config.ProviderGitLab:
		var opts []gitlabprovider.Option
		if cfg.Providers.GitLab.BaseURL != "" {
			opts = append(opts, gitlabprovider.WithBaseURL(cfg.Providers.GitLab.BaseURL))
		}
		return gitlabprovider.New(cfg.Providers.GitLab.Token, opts...)
	default:
		var opts []githubprovider.Option
		if cfg.Providers.GitHub.BaseURL != "" {
			opts = append(opts, githubprovider.WithBaseURL(cfg.Providers.GitHub.BaseURL))
		}
		return githubprovider.New(cfg.Providers.GitHub.Token, opts...)
	}
}
