package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	api "github.com/alantheprice/housegen/pkg/agent_api"
	providers "github.com/alantheprice/housegen/pkg/agent_providers"
	"github.com/alantheprice/housegen/pkg/house"
	"github.com/alantheprice/housegen/pkg/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "housegen"
	EnvPrefix      = "HOUSEGEN"
)

// Config is everything a run needs. It is built once and passed down; no
// package keeps its own copy.
type Config struct {
	Provider ProviderSettings `mapstructure:"provider" yaml:"provider"`
	Models   ModelSettings    `mapstructure:"models" yaml:"models"`
	Pipeline PipelineSettings `mapstructure:"pipeline" yaml:"pipeline"`
	Output   OutputSettings   `mapstructure:"output" yaml:"output"`
	Logging  LoggingSettings  `mapstructure:"logging" yaml:"logging"`
}

type ProviderSettings struct {
	// Type selects the text-completion backend: openrouter or ollama.
	Type       string `mapstructure:"type" yaml:"type"`
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host,omitempty"`
	Debug      bool   `mapstructure:"debug" yaml:"debug"`
}

type ModelSettings struct {
	Validator      string `mapstructure:"validator" yaml:"validator"`
	Planner        string `mapstructure:"planner" yaml:"planner"`
	Image          string `mapstructure:"image" yaml:"image"`
	ImageMaxTokens int    `mapstructure:"image_max_tokens" yaml:"image_max_tokens"`
}

type PipelineSettings struct {
	MaxRoomsPerFloor   int  `mapstructure:"max_rooms_per_floor" yaml:"max_rooms_per_floor"`
	RequireValidDomain bool `mapstructure:"require_valid_domain" yaml:"require_valid_domain"`
}

type OutputSettings struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	WritePlan   bool   `mapstructure:"write_plan" yaml:"write_plan"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file,omitempty"`
}

type LoggingSettings struct {
	File string `mapstructure:"file" yaml:"file"`
	JSON bool   `mapstructure:"json" yaml:"json"`
}

// NewConfig creates a new configuration with sensible defaults
func NewConfig() *Config {
	return &Config{
		Provider: ProviderSettings{
			Type:     string(api.OpenRouterClientType),
			Endpoint: providers.DefaultOpenRouterEndpoint,
		},
		Models: ModelSettings{
			Validator:      "openai/gpt-oss-120b:free",
			Planner:        "openai/gpt-oss-120b:free",
			Image:          "google/gemini-2.5-flash-image",
			ImageMaxTokens: 1024,
		},
		Pipeline: PipelineSettings{
			MaxRoomsPerFloor: house.MaxRoomsPerFloor,
		},
		Output: OutputSettings{
			Dir:       "generated_images",
			WritePlan: true,
		},
		Logging: LoggingSettings{
			File: utils.DefaultLogFile,
		},
	}
}

func setDefaults(v *viper.Viper) {
	def := NewConfig()
	v.SetDefault("provider.type", def.Provider.Type)
	v.SetDefault("provider.endpoint", def.Provider.Endpoint)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.ollama_host", "")
	v.SetDefault("provider.debug", false)

	v.SetDefault("models.validator", def.Models.Validator)
	v.SetDefault("models.planner", def.Models.Planner)
	v.SetDefault("models.image", def.Models.Image)
	v.SetDefault("models.image_max_tokens", def.Models.ImageMaxTokens)

	v.SetDefault("pipeline.max_rooms_per_floor", def.Pipeline.MaxRoomsPerFloor)
	v.SetDefault("pipeline.require_valid_domain", def.Pipeline.RequireValidDomain)

	v.SetDefault("output.dir", def.Output.Dir)
	v.SetDefault("output.write_plan", def.Output.WritePlan)
	v.SetDefault("output.metrics_file", "")

	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.json", false)
}

// Load layers defaults, an optional config file, HOUSEGEN_* environment
// variables and whatever flags the caller already bound on v. An explicit
// configFile must exist; otherwise ./housegen.yaml is used when present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.NewConfigError(configFile, err)
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, utils.NewConfigError(ConfigFileName+".yaml", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return &cfg, nil
}

// Validate checks the recognised options.
func (c *Config) Validate() error {
	switch api.ClientType(c.Provider.Type) {
	case api.OpenRouterClientType, api.OllamaClientType:
	default:
		return utils.NewConfigError("provider.type", fmt.Errorf("unknown provider %q", c.Provider.Type))
	}
	if strings.TrimSpace(c.Provider.Endpoint) == "" {
		return utils.NewConfigError("provider.endpoint", errors.New("endpoint cannot be empty"))
	}
	if c.Models.Validator == "" || c.Models.Planner == "" || c.Models.Image == "" {
		return utils.NewConfigError("models", errors.New("validator, planner and image models must be set"))
	}
	if c.Models.ImageMaxTokens <= 0 {
		return utils.NewConfigError("models.image_max_tokens", errors.New("must be positive"))
	}
	if c.Pipeline.MaxRoomsPerFloor <= 0 {
		return utils.NewConfigError("pipeline.max_rooms_per_floor", errors.New("must be positive"))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return utils.NewConfigError("output.dir", errors.New("output directory cannot be empty"))
	}
	return nil
}

// TextProvider returns the factory settings for the validator/planner backend.
func (c *Config) TextProvider() providers.ProviderConfig {
	return providers.ProviderConfig{
		Type:       api.ClientType(c.Provider.Type),
		Endpoint:   c.Provider.Endpoint,
		APIKey:     c.Provider.APIKey,
		OllamaHost: c.Provider.OllamaHost,
		Debug:      c.Provider.Debug,
	}
}

// ImageProvider returns the factory settings for the image backend.
func (c *Config) ImageProvider() providers.ProviderConfig {
	return providers.ProviderConfig{
		Type:     api.OpenRouterClientType,
		Endpoint: c.Provider.Endpoint,
		APIKey:   c.Provider.APIKey,
		Debug:    c.Provider.Debug,
	}
}

// Dump renders the effective configuration as YAML with the API key masked.
func (c *Config) Dump() ([]byte, error) {
	redacted := *c
	if redacted.Provider.APIKey != "" {
		redacted.Provider.APIKey = maskKey(redacted.Provider.APIKey)
	}
	return yaml.Marshal(&redacted)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
