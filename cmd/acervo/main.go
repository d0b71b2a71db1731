// Package main is the Acervo CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/verticelabs/acervo/internal/cache"
	"github.com/verticelabs/acervo/internal/config"
	"github.com/verticelabs/acervo/internal/embedding"
	"github.com/verticelabs/acervo/internal/generate"
	"github.com/verticelabs/acervo/internal/hyde"
	"github.com/verticelabs/acervo/internal/ingest"
	"github.com/verticelabs/acervo/internal/models"
	"github.com/verticelabs/acervo/internal/retrieval"
	"github.com/verticelabs/acervo/internal/server"
	"github.com/verticelabs/acervo/internal/store"
	"github.com/verticelabs/acervo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/acervo/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so that running from the project
// dir uses the project's config.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				return config.Load(fallback)
			}
		}
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("acervo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mock := fs.Bool("mock-providers", false, "use deterministic in-process providers (no external calls)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := buildComponents(cfg, logger, *mock)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Engine,
		components.Ingestor,
		components.Store,
		components.Cache,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

// components bundles everything the server needs, built explicitly so there
// is no hidden global state.
type components struct {
	Store    store.Store
	Cache    *cache.Manager
	Embedder embedding.Provider
	Engine   *retrieval.Engine
	Ingestor *ingest.Ingestor
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func buildComponents(cfg *config.Config, logger *zap.Logger, mock bool) (*components, error) {
	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cm, err := cache.NewManager(cfg.Storage.CacheDatabasePath, cfg.Cache.MaxEntries, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	var embedder embedding.Provider
	var generator generate.Generator
	if mock {
		embedder = embedding.NewMockProvider(cfg.Embedding.Dimensions)
		generator = &generate.MockGenerator{Response: "No generation endpoint is configured."}
	} else {
		httpEmbedder, err := embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			Endpoint:          cfg.Embedding.Endpoint,
			APIKey:            cfg.Embedding.APIKey,
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			Timeout:           cfg.Embedding.Timeout,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		})
		if err != nil {
			cm.Close()
			_ = st.Close()
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		embedder = httpEmbedder
		generator, err = generate.NewHTTPGenerator(generate.HTTPGeneratorConfig{
			Endpoint:          cfg.Generation.Endpoint,
			APIKey:            cfg.Generation.APIKey,
			Model:             cfg.Generation.Model,
			Temperature:       cfg.Generation.Temperature,
			Timeout:           cfg.Generation.Timeout,
			RequestsPerSecond: cfg.Generation.RequestsPerSecond,
		})
		if err != nil {
			cm.Close()
			_ = st.Close()
			return nil, fmt.Errorf("generation provider: %w", err)
		}
	}

	cached, err := embedding.NewCachingProvider(embedder, cfg.Embedding.CacheSize)
	if err != nil {
		cm.Close()
		_ = st.Close()
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	var expander *hyde.Expander
	if cfg.HyDE.Enabled {
		expander = hyde.NewExpander(generator, cached, logger)
	}

	engine := retrieval.NewEngine(st, cm, cached, generator, expander, retrieval.Config{
		TopK:          cfg.Retrieval.TopK,
		HyDEThreshold: cfg.HyDE.ConfidenceThreshold,
		EnrichQueries: cfg.Retrieval.EnrichQueries,
	}, logger)

	chunker := ingest.NewChunker(256, 32)
	ingestor := ingest.NewIngestor(st, cached, chunker, logger)

	return &components{
		Store:    st,
		Cache:    cm,
		Embedder: cached,
		Engine:   engine,
		Ingestor: ingestor,
	}, nil
}

func serverURL(cfg *config.Config) string {
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "user id")
	role := fs.String("role", "", "role")
	useHyde := fs.Bool("hyde", false, "use hypothesis expansion")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: acervo ask [flags] <question>")
		os.Exit(1)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	req := models.AskRequest{
		Query:   fs.Arg(0),
		UserID:  *userID,
		Role:    *role,
		UseHyDE: *useHyde,
	}
	body, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest(http.MethodPost, serverURL(cfg)+"/api/v1/ask", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if *userID != "" {
		httpReq.Header.Set("X-User-ID", *userID)
		httpReq.Header.Set("X-Role", *role)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var answer models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		fmt.Printf("Bad response: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s\n\n", answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - %s\n", src.Citation())
		}
	}
	fmt.Printf("\n[%s]\n", answer.Provenance)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title")
	docType := fs.String("type", "other", "document type (regulation|minutes|agenda|resolution|ordinance|other)")
	council := fs.String("council", "", "council")
	owner := fs.String("owner", "", "owner user id")
	global := fs.Bool("global", false, "globally visible")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: acervo ingest [flags] <text file>")
		os.Exit(1)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}
	parsedType, err := models.ParseDocType(*docType)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	name := *title
	if name == "" {
		name = filepath.Base(fs.Arg(0))
	}

	input := models.DocumentInput{
		Title:    name,
		Type:     parsedType,
		Council:  *council,
		OwnerID:  *owner,
		IsGlobal: *global,
		Content:  string(content),
	}
	body, _ := json.Marshal(input)
	resp, err := http.Post(serverURL(cfg)+"/api/v1/documents", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.Get(serverURL(cfg) + "/api/v1/stats")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println(`acervo - retrieval-augmented answers over institutional documents

Usage:
  acervo server [-config path] [-debug] [-mock-providers]
  acervo ask [-user id] [-role role] [-hyde] <question>
  acervo ingest [-title t] [-type t] [-council c] [-owner id] [-global] <text file>
  acervo status
  acervo version`)
}
