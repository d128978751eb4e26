package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Drive     DriveConfig     `yaml:"drive" mapstructure:"drive"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SourceConfig selects and configures the document source.
type SourceConfig struct {
	// Kind is one of "drive", "local", "ftp".
	Kind   string `yaml:"kind" mapstructure:"kind"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
	FTPURL string `yaml:"ftp_url" mapstructure:"ftp_url"`
}

// DriveConfig holds Google Drive access settings.
type DriveConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	FolderID string `yaml:"folder_id" mapstructure:"folder_id"`
}

// PipelineConfig configures run behavior.
type PipelineConfig struct {
	Workers    int    `yaml:"workers" mapstructure:"workers"`
	KeepGoing  bool   `yaml:"keep_going" mapstructure:"keep_going"`
	PromptFile string `yaml:"prompt_file" mapstructure:"prompt_file"`
}

// CacheConfig configures the analysis response cache. Empty path disables it.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig configures the artifact.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CODEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only walks keys viper already knows about, so keys without a
	// default must be bound explicitly or environment-only values are lost.
	for _, key := range []string{
		"anthropic.key",
		"drive.token",
		"drive.folder_id",
		"source.dir",
		"source.ftp_url",
		"cache.path",
		"pipeline.prompt_file",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("source.kind", "drive")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.rate_limit", 2.0)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.keep_going", false)
	v.SetDefault("output.path", "codebook.xlsx")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate fails fast with a descriptive error when a required value is
// absent. Called before any client is constructed.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (CODEBOOK_ANTHROPIC_KEY)")
	}

	switch c.Source.Kind {
	case "drive":
		if c.Drive.Token == "" {
			return eris.New("config: drive.token is required for the drive source (CODEBOOK_DRIVE_TOKEN)")
		}
		if c.Drive.FolderID == "" {
			return eris.New("config: drive.folder_id is required for the drive source (CODEBOOK_DRIVE_FOLDER_ID)")
		}
	case "local":
		if c.Source.Dir == "" {
			return eris.New("config: source.dir is required for the local source (CODEBOOK_SOURCE_DIR)")
		}
	case "ftp":
		if c.Source.FTPURL == "" {
			return eris.New("config: source.ftp_url is required for the ftp source (CODEBOOK_SOURCE_FTP_URL)")
		}
	default:
		return eris.Errorf("config: unknown source.kind %q (want drive, local, or ftp)", c.Source.Kind)
	}

	if c.Pipeline.Workers < 1 {
		return eris.Errorf("config: pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
