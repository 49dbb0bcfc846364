package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-matcher/internal/jobsource"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/recommend"
)

const (
	app       = "resume-matcher"
	envPrefix = "RESUME_MATCHER"
)

type Config struct {
	AI         *AIConfig         `mapstructure:"ai"`
	Timeouts   TimeoutsConfig    `mapstructure:"timeouts"`
	Scoring    *matching.Policy  `mapstructure:"scoring"`
	Categories []string          `mapstructure:"categories"`
	Recommend  recommend.Options `mapstructure:"recommend"`
	Index      IndexConfig       `mapstructure:"index"`
	Feed       *FeedConfig       `mapstructure:"feed"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey             string        `mapstructure:"api-key" json:"-"`
	APIKeyFile         string        `mapstructure:"api-key-file"`
	APIKeyEnv          string        `mapstructure:"api-key-env"`
	Model              string        `mapstructure:"model"`
	EmbeddingModel     string        `mapstructure:"embedding-model"`
	EmbeddingDimension int           `mapstructure:"embedding-dimension"`
	MaxRetries         int           `mapstructure:"max-retries"`
	MaxQuotaDelay      time.Duration `mapstructure:"max-quota-delay"`
	MaxLogLength       int           `mapstructure:"max-log-length"`
	Temperature        float32       `mapstructure:"temperature"`
}

type TimeoutsConfig struct {
	Extraction time.Duration `mapstructure:"extraction"`
	Generation time.Duration `mapstructure:"generation"`
	Embedding  time.Duration `mapstructure:"embedding"`
}

type IndexConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	MaxEntries           int  `mapstructure:"max-entries"`
	PlaceholderOnFailure bool `mapstructure:"placeholder-on-failure"`
}

type FeedConfig struct {
	jobsource.FeedConfig `mapstructure:",squash"`
	TokenFile            string `mapstructure:"token-file"`
	TokenEnv             string `mapstructure:"token-env"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-matcher scores résumés against job descriptions and ranks job corpora",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envKeys can be set through RESUME_MATCHER_* variables even without a
// config file that names them.
var envKeys = []string{
	"ai.enabled",
	"ai.gemini.api-key-file",
	"ai.gemini.model",
	"ai.gemini.embedding-model",
	"index.enabled",
	"feed.url",
	"feed.token-file",
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(key); err != nil {
			log.Fatalf("binding environment variable for %s: %v", key, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Only an explicitly requested config file is mandatory.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func defaultConfig() *Config {
	policy := matching.DefaultPolicy()
	return &Config{
		AI: &AIConfig{
			Provider: "gemini",
			Gemini:   &GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"},
		},
		Scoring: &policy,
	}
}

// getConfig decodes viper settings over the defaults, so a partial scoring
// section only overrides the keys it names.
func getConfig() (*Config, error) {
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if config.AI != nil && config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{APIKeyEnv: "GEMINI_API_KEY"}
	}
	return config, nil
}
