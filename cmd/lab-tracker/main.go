package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/lab-tracker/internal/comparison"
	"github.com/zombor/lab-tracker/internal/report"
	"github.com/zombor/lab-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("lab-tracker")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "lab-tracker.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./reports", "Storage directory path")
		scannerType    = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'anthropic'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llama3.2-vision, qwen2-vl)")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", scanning.DefaultAnthropicModel, "Anthropic model name")
		ocrEngine      = fs.StringLong("ocr", "none", "OCR pre-pass: 'none' or 'tesseract'")
		ocrLang        = fs.StringLong("ocr-lang", "eng", "Tesseract language(s), '+' separated")
		maxPages       = fs.IntLong("max-pages", scanning.DefaultMaxPages, "Maximum PDF pages sent to the scanner")
		maxScans       = fs.IntLong("max-concurrent-scans", 2, "Maximum scans in flight (0 for unlimited)")
		polarityFile   = fs.StringLong("polarity-file", "", "YAML file mapping parameter names to lower/higher is better")
		watchPolarity  = fs.BoolLong("watch-polarity", "Reload the polarity file when it changes")
		threshold      = fs.Float64Long("stability-threshold", comparison.DefaultStabilityThreshold, "Percent change below which a parameter is stable")
		matchMode      = fs.StringLong("match-mode", string(comparison.MatchNormalized), "Parameter name matching: 'exact' or 'normalized'")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("LAB_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	mode, err := comparison.ParseMatchMode(*matchMode)
	if err != nil {
		slog.Error("Invalid match mode", "error", err)
		os.Exit(1)
	}
	cfg := comparison.DefaultConfig()
	cfg.StabilityThreshold = *threshold
	cfg.MatchMode = mode

	directions := comparison.DefaultDirectionTable()
	if *polarityFile != "" {
		directions, err = comparison.LoadDirectionTable(*polarityFile)
		if err != nil {
			slog.Error("Failed to load polarity file", "path", *polarityFile, "error", err)
			os.Exit(1)
		}
	}
	engine, err := comparison.NewEngine(directions, cfg)
	if err != nil {
		slog.Error("Failed to initialize comparison engine", "error", err)
		os.Exit(1)
	}
	slog.Info("Comparison engine ready", "parameters", directions.Len(), "threshold", cfg.StabilityThreshold, "match_mode", cfg.MatchMode)

	// Initialize database
	slog.Info("Initializing database...")
	db, err := report.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var opts []scanning.Option
	opts = append(opts, scanning.WithMaxPages(*maxPages))
	switch *ocrEngine {
	case "none", "":
	case "tesseract":
		slog.Info("Initializing Tesseract OCR...", "languages", *ocrLang)
		ocr, err := scanning.NewTesseract(strings.Split(*ocrLang, "+")...)
		if err != nil {
			slog.Error("Failed to initialize Tesseract", "error", err)
			os.Exit(1)
		}
		defer ocr.Close()
		opts = append(opts, scanning.WithOCR(ocr))
	default:
		slog.Error("Invalid OCR engine", "ocr", *ocrEngine, "valid", "none or tesseract")
		os.Exit(1)
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel, opts...)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel, opts...)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "anthropic":
		apiKey := *anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Anthropic API key is required. Set --anthropic-key flag or ANTHROPIC_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Anthropic scanner...", "model", *anthropicModel)
		scanner, err = scanning.NewAnthropic(apiKey, *anthropicModel, opts...)
		if err != nil {
			slog.Error("Failed to initialize Anthropic", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or anthropic")
		os.Exit(1)
	}
	scanner = scanning.NewLimited(scanner, *maxScans)
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := report.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	reportService := report.NewService(db, scanner, store, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchPolarity && *polarityFile != "" {
		go func() {
			err := comparison.WatchDirectionTable(ctx, *polarityFile, func(table *comparison.DirectionTable) {
				next, err := comparison.NewEngine(table, reportService.Engine().Config())
				if err != nil {
					slog.Error("Failed to rebuild comparison engine", "error", err)
					return
				}
				reportService.SetEngine(next)
			})
			if err != nil {
				slog.Error("Polarity watcher stopped", "error", err)
			}
		}()
	}

	basicAuth := report.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := report.NewServer(reportService, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
