package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/ai/gemini"
	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/recommend"
	"github.com/spigell/resume-matcher/internal/secrets"
	"github.com/spigell/resume-matcher/internal/vectorindex"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// capabilities are the AI clients built from the config. Both are nil when
// ai.enabled is false.
type capabilities struct {
	generator ai.Generator
	embedder  ai.Embedder
}

// needsEmbedder reports whether any configured component consumes
// embeddings.
func needsEmbedder(config *Config) bool {
	return config.Index.Enabled || (config.Scoring != nil && config.Scoring.SemanticWeight > 0)
}

func buildAI(ctx context.Context, config *Config, logger *zap.Logger) (*capabilities, error) {
	caps := &capabilities{}
	if config.AI == nil || !config.AI.Enabled {
		logger.Info("ai is disabled; keywords come from the built-in vocabulary")
		return caps, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	cfg := config.AI.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   cfg.APIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or %s)", err, cfg.APIKeyEnv)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	clientCfg := gemini.Config{
		Model:              cfg.Model,
		EmbeddingModel:     cfg.EmbeddingModel,
		EmbeddingDimension: cfg.EmbeddingDimension,
		MaxRetries:         cfg.MaxRetries,
		MaxQuotaDelay:      cfg.MaxQuotaDelay,
		MaxLogLength:       cfg.MaxLogLength,
		Temperature:        cfg.Temperature,
	}

	generator, err := gemini.NewGenerator(client, clientCfg, logger)
	if err != nil {
		return nil, err
	}
	caps.generator = generator

	if needsEmbedder(config) {
		embedder, err := gemini.NewEmbedder(client, clientCfg, logger)
		if err != nil {
			return nil, err
		}
		caps.embedder = embedder
	}

	return caps, nil
}

func buildEngine(config *Config, caps *capabilities, logger *zap.Logger) (*matching.Engine, error) {
	categories, err := keywords.ParseCategories(config.Categories)
	if err != nil {
		return nil, err
	}

	extractor := keywords.NewExtractor(caps.generator, logger,
		keywords.WithTimeout(config.Timeouts.Extraction),
		keywords.WithMaxLogLength(maxLogLength(config)),
	)

	return matching.NewEngine(matching.Deps{
		Extractor: extractor,
		Generator: caps.generator,
		Embedder:  caps.embedder,
		Logger:    logger,
	}, matching.Config{
		Policy:            config.Scoring,
		Categories:        categories,
		GenerationTimeout: config.Timeouts.Generation,
		EmbeddingTimeout:  config.Timeouts.Embedding,
		MaxLogLength:      maxLogLength(config),
	})
}

func buildPipeline(engine *matching.Engine, config *Config, logger *zap.Logger) (*recommend.Pipeline, error) {
	var index vectorindex.Index
	if config.Index.Enabled {
		embedder := engine.Embedder()
		if embedder == nil {
			return nil, errors.New("index is enabled but no embedder is configured (enable ai)")
		}
		memory, err := vectorindex.NewMemory(embedder.Dimension(),
			vectorindex.WithMaxEntries(config.Index.MaxEntries),
			vectorindex.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		index = memory
	}

	return recommend.New(engine, index, logger,
		recommend.WithPlaceholderOnFailure(config.Index.PlaceholderOnFailure),
		recommend.WithEmbeddingTimeout(config.Timeouts.Embedding),
		recommend.WithIndexWorkers(config.Recommend.Workers),
	)
}

func maxLogLength(config *Config) int {
	if config.AI == nil || config.AI.Gemini == nil {
		return 0
	}
	return config.AI.Gemini.MaxLogLength
}

// writeJSON prints v as indented JSON to stdout or, when path is set, to a
// file.
func writeJSON(path string, v any) error {
	out := os.Stdout
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// dumpToTmpFile writes v to a new temporary JSON file and returns its name.
func dumpToTmpFile(pattern string, v any) (string, error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// bootstrap creates the logger and reads the config; any failure is fatal.
func bootstrap(command string) (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the "+app, zap.String("command", command), zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}
