package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/translate-client/config"
	"github.com/saker-ai/translate-client/internal/logger"
	"github.com/saker-ai/translate-client/pkg/translate"
)

// Config represents the full runner configuration.
type Config struct {
	RootDir string `mapstructure:"-"`

	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	ModelID        string `mapstructure:"model_id"`
	TargetLanguage string `mapstructure:"target_language"`
	Voice          string `mapstructure:"voice"`
	AudioEnabled   bool   `mapstructure:"audio_enabled"`

	ConnectTimeoutSec     int `mapstructure:"connect_timeout_sec"`
	HeartbeatIntervalSec  int `mapstructure:"heartbeat_interval_sec"`
	StalenessThresholdSec int `mapstructure:"staleness_threshold_sec"`
	ReceiveTimeoutSec     int `mapstructure:"receive_timeout_sec"`

	InputPath       string `mapstructure:"input_path"`
	InputSampleRate int    `mapstructure:"input_sample_rate"`
	OutputPath      string `mapstructure:"output_path"`
	ProfilesDir     string `mapstructure:"profiles_dir"`

	Log logger.Config `mapstructure:"log"`
}

// Load reads configuration from the embedded defaults, an optional conf.yaml
// in the root directory, and TRC_* environment variables.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := newViper()
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finish(v, rootDir)
}

// LoadConfig reads configuration from an explicit file path; an empty path
// falls back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finish(v, filepath.Dir(absPath))
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("model_id", "qwen-audio-turbo")
	v.SetDefault("target_language", "zh-Hans")
	v.SetDefault("voice", "zh-CN-YunxiNeural")
	v.SetDefault("audio_enabled", true)
	v.SetDefault("connect_timeout_sec", 10)
	v.SetDefault("heartbeat_interval_sec", 25)
	v.SetDefault("staleness_threshold_sec", 30)
	v.SetDefault("receive_timeout_sec", 60)
	v.SetDefault("input_sample_rate", 16000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "translate-client.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetEnvPrefix("trc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RootDir = rootDir
	derivePaths(&cfg)
	return cfg, nil
}

// ClientConfig converts the runner configuration into session parameters.
func (c Config) ClientConfig() translate.Config {
	return translate.Config{
		Endpoint:           c.Endpoint,
		APIKey:             c.APIKey,
		ModelID:            c.ModelID,
		TargetLanguage:     c.TargetLanguage,
		Voice:              c.Voice,
		AudioEnabled:       c.AudioEnabled,
		ConnectTimeout:     time.Duration(c.ConnectTimeoutSec) * time.Second,
		HeartbeatInterval:  time.Duration(c.HeartbeatIntervalSec) * time.Second,
		StalenessThreshold: time.Duration(c.StalenessThresholdSec) * time.Second,
		ReceiveTimeout:     time.Duration(c.ReceiveTimeoutSec) * time.Second,
	}
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("TRC_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.ProfilesDir = resolvePath(cfg.RootDir, cfg.ProfilesDir, "profiles")
	cfg.OutputPath = resolvePath(cfg.RootDir, cfg.OutputPath, filepath.Join("data", "translated.pcm"))
	if cfg.InputPath != "" && !filepath.IsAbs(cfg.InputPath) {
		cfg.InputPath = filepath.Join(cfg.RootDir, cfg.InputPath)
	}
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
