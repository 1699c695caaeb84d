package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const defaultPath = "config/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	GooglePlay struct {
		PackageName        string `yaml:"package_name"`
		ServiceAccountFile string `yaml:"service_account_file"`
		RegionCode         string `yaml:"region_code"`
	} `yaml:"google_play"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
		Topic           string `yaml:"topic"`
	} `yaml:"firebase"`
	Bridge struct {
		SigningKey string `yaml:"signing_key"`
	} `yaml:"bridge"`
}

// Path returns the config file location, CONFIG_PATH or the default.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return defaultPath
}

// LoadConfig reads the YAML file at path and applies environment overrides.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config data: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":4000"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	override(&cfg.Server.Address, "SERVER_ADDRESS")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.GooglePlay.PackageName, "GOOGLE_PLAY_PACKAGE_NAME")
	override(&cfg.GooglePlay.ServiceAccountFile, "GOOGLE_PLAY_SERVICE_ACCOUNT_FILE")
	override(&cfg.GooglePlay.RegionCode, "GOOGLE_PLAY_REGION_CODE")
	override(&cfg.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS_FILE")
	override(&cfg.Firebase.Topic, "FIREBASE_TOPIC")
	override(&cfg.Bridge.SigningKey, "BRIDGE_SIGNING_KEY")

	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return fmt.Errorf("invalid REDIS_DB: %q", v)
		}
		cfg.Redis.DB = db
	}
	return nil
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
