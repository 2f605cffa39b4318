// Package config loads the platform configuration from YAML with
// struct-tag defaults applied first.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Server    ServerConfig    `yaml:"server"`
	CMS       CMSConfig       `yaml:"cms"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Media     MediaConfig     `yaml:"media"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Aviators Training Centre"`
	Tagline     string `yaml:"tagline" default:"Your gateway to a career in aviation"`
	Description string `yaml:"description" default:"Flight training, DGCA ground classes and aviation career guidance"`
	BaseURL     string `yaml:"base_url" default:"http://localhost:8660"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"8660"`
}

// CMSConfig points at the headless CMS. The API token is taken from the
// environment, never from the config file.
type CMSConfig struct {
	BaseURL    string `yaml:"base_url" default:"https://cms.example.com"`
	Dataset    string `yaml:"dataset" default:"production"`
	APIVersion string `yaml:"api_version" default:"v2024-01-01"`
	TokenEnv   string `yaml:"token_env" default:"CMS_API_TOKEN"`
}

type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" default:"true"`
	SecretEnv string `yaml:"secret_env" default:"REVALIDATE_SECRET"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"./flightdeck.db"`
}

// MediaConfig configures the S3-compatible asset store for cover images.
type MediaConfig struct {
	Enabled       bool   `yaml:"enabled" default:"false"`
	Bucket        string `yaml:"bucket" default:""`
	BaseEndpoint  string `yaml:"base_endpoint" default:""`
	PublicBaseURL string `yaml:"public_base_url" default:""`
	AccessKeyEnv  string `yaml:"access_key_env" default:"MEDIA_ACCESS_KEY_ID"`
	SecretKeyEnv  string `yaml:"secret_key_env" default:"MEDIA_SECRET_ACCESS_KEY"`
}

type AnalyticsConfig struct {
	Enabled bool        `yaml:"enabled" default:"true"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" default:"false"`
	Brokers []string `yaml:"brokers" default:"localhost:9092"`
	Topic   string   `yaml:"topic" default:"flightdeck.pageviews"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
}

var AppConfig *Config

// LoadConfig reads the config file at path, falling back to pure defaults
// when the file does not exist.
func LoadConfig(path string) error {
	config := &Config{}

	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		AppConfig = config
		return nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	AppConfig = config
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}

// CMSToken reads the CMS API token from the configured environment variable.
func (c *Config) CMSToken() string {
	return os.Getenv(c.CMS.TokenEnv)
}

// RevalidateSecret reads the cache-invalidation shared secret.
func (c *Config) RevalidateSecret() string {
	return os.Getenv(c.Cache.SecretEnv)
}
