package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/adherence-scorer/internal/batch"
	"github.com/spigell/adherence-scorer/internal/cache"
	"github.com/spigell/adherence-scorer/internal/magicalapi"
	"github.com/spigell/adherence-scorer/internal/scoring"
)

const (
	app       = "adherence-scorer"
	envPrefix = "ADHERENCE"
	// apiKeyEnv is read when neither api.api-key nor api.api-key-file is set.
	apiKeyEnv = "MAGICALAPI_API_KEY"
)

type Config struct {
	API     APIConfig              `mapstructure:"api"`
	Poll    PollConfig             `mapstructure:"poll"`
	Batch   BatchConfig            `mapstructure:"batch"`
	Job     scoring.JobRequirement `mapstructure:"job"`
	Input   string                 `mapstructure:"input" validate:"required"`
	Output  string                 `mapstructure:"output" validate:"required"`
	Cache   CacheConfig            `mapstructure:"cache"`
	Metrics MetricsConfig          `mapstructure:"metrics"`
	AI      *AIConfig              `mapstructure:"ai"`
}

type APIConfig struct {
	Endpoint   string        `mapstructure:"endpoint" validate:"required,url"`
	APIKey     string        `mapstructure:"api-key" json:"-"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// Mock serves a built-in sample profile instead of calling the API.
	Mock bool `mapstructure:"mock"`
}

type PollConfig struct {
	MaxAttempts      int           `mapstructure:"max-attempts" validate:"gte=1"`
	Interval         time.Duration `mapstructure:"interval" validate:"gte=0"`
	RateLimitBackoff time.Duration `mapstructure:"rate-limit-backoff" validate:"gte=0"`
}

type BatchConfig struct {
	MaxResolveAttempts int           `mapstructure:"max-resolve-attempts" validate:"gte=1"`
	RetryDelay         time.Duration `mapstructure:"retry-delay" validate:"gte=0"`
	CandidateDelay     time.Duration `mapstructure:"candidate-delay" validate:"gte=0"`
	Top                int           `mapstructure:"top" validate:"gte=0"`
	OnUnauthorized     string        `mapstructure:"on-unauthorized" validate:"oneof=abort continue ask"`
}

type CacheConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	cache.Options `mapstructure:",squash"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength int    `mapstructure:"max-log-length" validate:"gte=0"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "adherence-scorer scores a batch of professional profiles against a job description",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is adherence-scorer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.endpoint", magicalapi.DefaultEndpoint)
	v.SetDefault("api.timeout", magicalapi.DefaultTimeout)
	v.SetDefault("poll.max-attempts", magicalapi.DefaultMaxAttempts)
	v.SetDefault("poll.interval", magicalapi.DefaultInterval)
	v.SetDefault("poll.rate-limit-backoff", magicalapi.DefaultRateLimitBackoff)
	v.SetDefault("batch.max-resolve-attempts", batch.DefaultMaxResolveAttempts)
	v.SetDefault("batch.retry-delay", batch.DefaultRetryDelay)
	v.SetDefault("batch.candidate-delay", batch.DefaultCandidateDelay)
	v.SetDefault("batch.top", batch.DefaultTopN)
	v.SetDefault("batch.on-unauthorized", string(batch.PolicyAbort))
	v.SetDefault("output", "results.csv")

	defaults := cache.DefaultOptions()
	v.SetDefault("cache.addr", defaults.Addr)
	v.SetDefault("cache.ttl", defaults.DefaultTTL)
	v.SetDefault("cache.prefix", defaults.Prefix)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// A missing .env file is fine, the environment may already be set.
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
		// Without an explicit config file, flags and environment are enough.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.Batch.OnUnauthorized = strings.ToLower(strings.TrimSpace(config.Batch.OnUnauthorized))

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if config.AI != nil && config.AI.Enabled && config.AI.Gemini == nil {
		return nil, errors.New("ai.gemini section is required when ai is enabled")
	}

	return &config, nil
}
