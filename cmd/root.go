package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/youthguide-na/opportunity-finder/internal/corpus"
	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
	"github.com/youthguide-na/opportunity-finder/internal/rerank"
	"github.com/youthguide-na/opportunity-finder/internal/retrieval"
)

const (
	app       = "opportunity-finder"
	envPrefix = "OPPFINDER"
)

type Config struct {
	Data      *DataConfig          `mapstructure:"data"`
	Redis     *RedisConfig         `mapstructure:"redis"`
	Retrieval retrieval.Defaults   `mapstructure:"retrieval"`
	Profile   *opportunity.Profile `mapstructure:"profile"`
	AI        *AIConfig            `mapstructure:"ai"`
	Metrics   *MetricsConfig       `mapstructure:"metrics"`
}

type DataConfig struct {
	PrimaryFile     string        `mapstructure:"primary-file"`
	FallbackFile    string        `mapstructure:"fallback-file"`
	CacheTTL        time.Duration `mapstructure:"cache-ttl"`
	FailureTTL      time.Duration `mapstructure:"failure-ttl"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	ExcludedSources []string      `mapstructure:"excluded-sources"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	// PrimaryKey, when set, makes the primary dataset come from Redis
	// instead of PrimaryFile.
	PrimaryKey string `mapstructure:"primary-key"`
	Channel    string `mapstructure:"channel"`
}

type AIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Blend       rerank.Blend  `mapstructure:"blend"`
	Gemini      *GeminiConfig `mapstructure:"gemini"`
	OpenAI      *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	Model     string `mapstructure:"model"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
}

type MetricsConfig struct {
	File string `mapstructure:"file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "opportunity-finder searches jobs, trainings, internships and scholarships for young people in Namibia",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is opportunity-finder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	d := retrieval.DefaultDefaults()
	b := rerank.DefaultBlend()

	viper.SetDefault("data.primary-file", "data/opportunities.json")
	viper.SetDefault("data.fallback-file", "data/mock-opportunities.json")
	viper.SetDefault("data.cache-ttl", corpus.DefaultTTL)
	viper.SetDefault("data.failure-ttl", corpus.DefaultFailureTTL)
	viper.SetDefault("data.read-timeout", corpus.DefaultReadTimeout)
	viper.SetDefault("data.excluded-sources", []string{corpus.DefaultExampleSource})

	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.primary-key", "")
	viper.SetDefault("redis.channel", corpus.DefaultInvalidationChannel)

	viper.SetDefault("retrieval.top-k", d.TopK)
	viper.SetDefault("retrieval.min-score", d.MinScore)
	viper.SetDefault("retrieval.stage1-top-k", d.Stage1TopK)
	viper.SetDefault("retrieval.stage2-min-score", d.Stage2MinScore)

	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", rerank.DefaultTimeout)
	viper.SetDefault("ai.concurrency", rerank.DefaultConcurrency)
	viper.SetDefault("ai.blend.exponent", b.Exponent)
	viper.SetDefault("ai.blend.relevance-weight", b.RelevanceWeight)
	viper.SetDefault("ai.blend.lexical-weight", b.LexicalWeight)
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.openai.base-url", "")
	viper.SetDefault("ai.openai.model", "")

	viper.SetDefault("metrics.file", "")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// Every setting has a default, so only an explicitly given or broken
	// config file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
