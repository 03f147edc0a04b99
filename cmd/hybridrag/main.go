package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/hybridrag/internal/types"
	cfgPkg "github.com/xhad/hybridrag/pkg/config"
	"github.com/xhad/hybridrag/pkg/llm"
	"github.com/xhad/hybridrag/pkg/query"
	"github.com/xhad/hybridrag/pkg/store"
)

const (
	backendFlat     = "flat"
	backendPGVector = "pgvector"
)

var (
	configPath string
	backend    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hybridrag",
	Short: "Hybrid retrieval over property listings and community guidelines",
	Long: `hybridrag builds a vector knowledge base from a listings CSV and a guidelines
document, then answers questions by combining vector search with keyword filtering.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", backendFlat, "Vector index backend: flat or pgvector")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline details to stderr")
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// app holds the components shared by every command.
type app struct {
	config   *cfgPkg.Config
	logger   *log.Logger
	embedder types.Embedder
	closers  []func() error
}

func newApp() (*app, error) {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "hybridrag: ", log.LstdFlags)
	}

	a := &app{config: config, logger: logger}

	embedder, err := llm.NewEmbedder(a.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.embedder = embedder

	if config.Cache.Path != "" {
		cached, err := llm.NewCachedEmbedder(embedder, config.LLM.Provider+"/"+config.LLM.EmbeddingModel, config.Cache.Path, logger)
		if err != nil {
			return nil, err
		}
		a.embedder = cached
		a.closers = append(a.closers, cached.Close)
	}

	return a, nil
}

func (a *app) providerConfig() llm.ProviderConfig {
	c := a.config.LLM
	return llm.ProviderConfig{
		Provider:       c.Provider,
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		Model:          c.Model,
		EmbeddingModel: c.EmbeddingModel,
		MaxTokens:      c.MaxTokens,
		Temperature:    c.Temperature,
		Timeout:        c.Timeout,
		RateLimit:      c.RateLimit,
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Printf("close: %v", err)
		}
	}
}

// openIndex returns the configured index. With load set, the flat index
// is read back from disk; otherwise it starts empty for a rebuild.
func (a *app) openIndex(ctx context.Context, load bool) (types.Index, error) {
	switch backend {
	case backendFlat:
		idx, err := store.NewFlatIndex(store.FlatIndexConfig{
			Dimension:    a.config.Index.Dimension,
			MetadataPath: a.config.Index.MetadataPath,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, err
		}
		if load {
			if err := idx.Load(a.config.Index.Path); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("no index at %s, run 'hybridrag build' first", a.config.Index.Path)
				}
				return nil, err
			}
		}
		return idx, nil

	case backendPGVector:
		if a.config.Database.URL == "" {
			return nil, errors.New("pgvector backend requires database.url or DATABASE_URL")
		}
		idx, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: a.config.Database.URL,
			TableName:  a.config.Database.TableName,
			VectorDim:  a.config.Index.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		a.closers = append(a.closers, func() error { idx.Close(); return nil })
		return idx, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func (a *app) engine(ctx context.Context) (*query.Engine, error) {
	index, err := a.openIndex(ctx, true)
	if err != nil {
		return nil, err
	}

	generator, err := llm.NewGenerator(a.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	return query.NewWithConfig(a.embedder, index, generator, query.EngineConfig{
		TopK:       a.config.Query.TopK,
		SystemRole: a.config.Query.SystemRole,
		Logger:     a.logger,
	}), nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
