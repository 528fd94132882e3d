package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/isseis/go-formfill-exporter/config"
	ffapi "github.com/isseis/go-formfill-exporter/formfill_api"
	ffexp "github.com/isseis/go-formfill-exporter/formfill_exporter"
	"github.com/isseis/go-formfill-exporter/kv_store"
	"github.com/isseis/go-formfill-exporter/logger"
	sw "github.com/isseis/go-formfill-exporter/storage_writer"
)

const Version = "0.1.0"

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}
}

// options holds the per-run command-line options.
type options struct {
	id          int64
	name        string
	format      string
	page        string
	action      string
	print       bool
	yes         bool
	configPath  string
	metricsFile string
}

// operation is the exporter call selected by the command line.
type operation int

const (
	opChoose operation = iota
	opPDF
	opJPG
	opJPGPages
	opPrint
)

// plan validates opts and returns the operation to run with its arguments.
func plan(opts options) (operation, ffexp.PageSelector, *ffexp.Action, error) {
	if opts.id <= 0 {
		return 0, ffexp.PageSelector{}, nil, fmt.Errorf("-id must be a positive form fill id")
	}
	var action *ffexp.Action
	if opts.action != "" {
		a, err := ffexp.ParseAction(opts.action)
		if err != nil {
			return 0, ffexp.PageSelector{}, nil, err
		}
		action = &a
	}
	page, err := ffexp.ParsePageSelector(opts.page)
	if err != nil {
		return 0, ffexp.PageSelector{}, nil, err
	}

	if opts.print {
		return opPrint, page, action, nil
	}
	switch strings.ToLower(opts.format) {
	case "", "choose":
		return opChoose, page, action, nil
	case "pdf":
		return opPDF, page, action, nil
	case "jpg":
		if page.IsAll() && action != nil && *action != ffexp.ActionCancel {
			return opJPGPages, page, action, nil
		}
		return opJPG, page, action, nil
	default:
		return 0, ffexp.PageSelector{}, nil, fmt.Errorf("invalid format %q (pdf, jpg or choose)", opts.format)
	}
}

// printUsage prints the complete usage information including flags and environment variables
func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
	flag.PrintDefaults()

	fmt.Fprintln(flag.CommandLine.Output(), "\nLogger environment variables:")
	for _, v := range logger.GetEnvVarsHelp() {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-28s %s\n", v.Name, v.Description)
	}

	exporterEnvVars := []struct {
		Name        string
		Description string
	}{
		{"FORMFILL_API_URL", "Base URL of the form-fill API (required)"},
		{"FORMFILL_API_TOKEN", "Bearer token; read from the state store when unset"},
		{"FORMFILL_DETAIL_PATH", "Route of form-fill details (default: /form-fills)"},
		{"FORMFILL_PREVIEW_TIMEOUT", "Timeout of detail lookups (default: 120s)"},
		{"FORMFILL_GENERATION_TIMEOUT", "Timeout of export downloads (default: 600s)"},
		{"FORMFILL_STORAGE_BACKEND", "scoped or sandbox (default: sandbox)"},
		{"FORMFILL_DOCUMENT_DIR", "Document directory of the sandbox backend"},
		{"FORMFILL_CACHE_DIR", "Directory for downloads and shared files"},
		{"FORMFILL_STORE_KIND", "json or sqlite (default: json)"},
		{"FORMFILL_STORE_PATH", "Path of the state store"},
		{"FORMFILL_SHARE_COMMAND", "Command used to share a file"},
		{"FORMFILL_PRINT_COMMAND", "Command used to print a file (default: lp)"},
	}
	fmt.Fprintln(flag.CommandLine.Output(), "\nExporter environment variables:")
	for _, v := range exporterEnvVars {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-28s %s\n", v.Name, v.Description)
	}
}

// newStorageBackend selects the storage backend named by cfg.
func newStorageBackend(cfg *config.Config, store kv_store.Store, picker sw.DirectoryPicker) (sw.StorageBackend, error) {
	switch cfg.Storage.Backend {
	case config.BackendScoped:
		return sw.NewScopedGrantBackend(store, picker), nil
	case config.BackendSandbox:
		return sw.NewSandboxDirectoryBackend(cfg.Storage.DocumentDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newTokenSource prefers a configured token over the one kept in the store.
func newTokenSource(cfg *config.Config, store kv_store.Store) ffapi.TokenSource {
	if cfg.API.Token != "" {
		return ffapi.StaticToken(cfg.API.Token)
	}
	return ffapi.StoreTokenSource{Store: store}
}

func main() {
	flag.Usage = printUsage

	var opts options
	flag.Int64Var(&opts.id, "id", 0, "Form fill id to export")
	flag.StringVar(&opts.name, "name", "", "Document name used for the exported file name")
	flag.StringVar(&opts.format, "format", "choose", "Export format: pdf, jpg or choose")
	flag.StringVar(&opts.page, "page", "", "JPEG page: a page number, all, or empty to decide from the page count")
	flag.StringVar(&opts.action, "action", "", "save, share or cancel; prompts when empty")
	flag.BoolVar(&opts.print, "print", false, "Print the PDF instead of exporting it")
	flag.BoolVar(&opts.yes, "yes", false, "Confirm multi-page saves without asking")
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&opts.metricsFile, "metrics_file", "", "Write Prometheus metrics to this file at exit")
	logger.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logCfg, err := logger.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading logger config: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
	log := logger.NewHybridLogger(*logCfg)

	os.Exit(run(opts, log))
}

func run(opts options, log logger.Logger) (exitCode int) {
	defer func() {
		if err := log.FlushWebhook(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush webhook logs: %v\n", err)
		}
	}()

	op, page, action, err := plan(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		log.Error("Failed to create state directory", "error", err)
		return 1
	}
	store, err := kv_store.Open(kv_store.Kind(cfg.Store.Kind), cfg.Store.Path)
	if err != nil {
		log.Error("Failed to open state store", "path", cfg.Store.Path, "error", err)
		return 1
	}
	defer store.Close()

	prompter := newTerminalPrompter(os.Stdin, os.Stdout)
	prompter.presetAction = action
	prompter.assumeConfirm = opts.yes

	backend, err := newStorageBackend(cfg, store, prompter)
	if err != nil {
		log.Error("Failed to create storage backend", "error", err)
		return 1
	}
	writer := sw.NewWriter(backend,
		sw.WithSharer(newCommandSharer(cfg.Host.ShareCommand), cfg.Storage.CacheDir),
		sw.WithLogger(log),
	)

	client, err := ffapi.NewClient(cfg.API.BaseURL, newTokenSource(cfg, store),
		ffapi.WithDetailPath(cfg.API.DetailPath),
		ffapi.WithTimeouts(cfg.API.PreviewTimeout, cfg.API.GenerationTimeout),
	)
	if err != nil {
		log.Error("Failed to create API client", "error", err)
		return 1
	}

	exporterOpts := []ffexp.ExporterOption{ffexp.WithLogger(log)}
	if cfg.Host.PrintCommand != "" {
		exporterOpts = append(exporterOpts, ffexp.WithPrinter(newCommandPrinter(cfg.Host.PrintCommand)))
	}
	exporter := ffexp.NewExporter(client, writer, prompter, filepath.Join(cfg.Storage.CacheDir, "downloads"), exporterOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("Form fill export started", "version", Version, "form_fill_id", opts.id, "backend", string(backend.Kind()))
	var res *ffexp.ExportResult
	switch op {
	case opPrint:
		res, err = exporter.PrintDocument(ctx, opts.id, opts.name)
	case opPDF:
		res, err = exporter.ExportPDF(ctx, opts.id, opts.name)
	case opJPG:
		res, err = exporter.ExportJPG(ctx, opts.id, opts.name, page)
	case opJPGPages:
		res, err = exporter.ExportJPGPages(ctx, opts.id, opts.name, *action)
	default:
		res, err = exporter.ExportWithChoice(ctx, opts.id, opts.name)
	}

	if opts.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(opts.metricsFile, prometheus.DefaultGatherer); werr != nil {
			log.Warn("Failed to write metrics", "path", opts.metricsFile, "error", werr)
		}
	}

	if err != nil {
		log.Error("Export failed", "form_fill_id", opts.id, "error", err)
		if errors.Is(err, ffexp.ErrSessionInvalid) {
			return 3
		}
		return 1
	}
	log.Info("Export complete", "form_fill_id", opts.id, "cancelled", res.Cancelled, "stats", res.Stats.String())
	return 0
}
