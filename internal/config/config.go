// Package config holds the application configuration: YAML file with
// reflection-applied defaults, plus an environment overlay applied once at
// startup. Nothing below main ever reads the process environment; backends
// receive typed config structs.
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

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig    `yaml:"site"`
	Server   ServerConfig  `yaml:"server"`
	Database DBConfig      `yaml:"database"`
	Storage  StorageConfig `yaml:"storage"`
	Content  ContentConfig `yaml:"content"`
	Logging  LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Inkwell"`
	Description string `yaml:"description" default:"A personal blog"`
	BaseURL     string `yaml:"base_url" default:"http://localhost:12700"`
	Author      string `yaml:"author" default:""`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12700"`
}

type DBConfig struct {
	Path string `yaml:"path" default:"./inkwell.db"`
}

// StorageConfig selects and configures the byte-storage backends. The default
// backend kind is recomputed by ApplyEnv when an IPFS endpoint is present.
type StorageConfig struct {
	Default string        `yaml:"default" default:"local"`
	Local   LocalStorage  `yaml:"local"`
	IPFS    IPFSStorage   `yaml:"ipfs"`
	GitHub  GitHubStorage `yaml:"github"`
	S3      S3Storage     `yaml:"s3"`
}

type LocalStorage struct {
	BaseDir string `yaml:"base_dir" default:"./data/storage"`
}

type IPFSStorage struct {
	APIURL string `yaml:"api_url" default:""`
}

type GitHubStorage struct {
	Owner  string `yaml:"owner" default:""`
	Repo   string `yaml:"repo" default:""`
	Branch string `yaml:"branch" default:"main"`
	Token  string `yaml:"token" default:""`
}

type S3Storage struct {
	AccessKeyID     string `yaml:"access_key_id" default:""`
	AccessKeySecret string `yaml:"access_key_secret" default:""`
	Endpoint        string `yaml:"endpoint" default:""`
	Bucket          string `yaml:"bucket" default:""`
}

type ContentConfig struct {
	PostsPerPage   int    `yaml:"posts_per_page" default:"50"`
	SiteOutputDir  string `yaml:"site_output_dir" default:"./public"`
	HighlightTheme string `yaml:"highlight_theme" default:"gruvbox"`
	ExcerptWords   int    `yaml:"excerpt_words" default:"50"`
}

// LoadConfig reads the YAML file at path on top of struct-tag defaults. A
// missing file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	data, err := os.ReadFile(path)
	if err != nil {
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
		return config, nil
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv overlays environment variables onto the loaded config and derives
// the default backend: an IPFS endpoint in the environment promotes IPFS to
// default, otherwise the local filesystem stays the guaranteed fallback.
func (c *Config) ApplyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	overlay(&c.Database.Path, "DATABASE_PATH")
	overlay(&c.Server.Port, "PORT")
	overlay(&c.Logging.Level, "LOG_LEVEL")

	overlay(&c.Storage.Local.BaseDir, "STORAGE_DIR")
	overlay(&c.Storage.IPFS.APIURL, "IPFS_API_URL")
	overlay(&c.Storage.GitHub.Owner, "GITHUB_OWNER")
	overlay(&c.Storage.GitHub.Repo, "GITHUB_REPO")
	overlay(&c.Storage.GitHub.Branch, "GITHUB_BRANCH")
	overlay(&c.Storage.GitHub.Token, "GITHUB_TOKEN")
	overlay(&c.Storage.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	overlay(&c.Storage.S3.AccessKeySecret, "S3_ACCESS_KEY_SECRET")
	overlay(&c.Storage.S3.Endpoint, "S3_ENDPOINT")
	overlay(&c.Storage.S3.Bucket, "S3_BUCKET")

	if c.Storage.IPFS.APIURL != "" {
		c.Storage.Default = "ipfs"
	}
	overlay(&c.Storage.Default, "STORAGE_BACKEND")
}

func (g GitHubStorage) Configured() bool {
	return g.Owner != "" && g.Repo != "" && g.Token != ""
}

func (s S3Storage) Configured() bool {
	return s.AccessKeyID != "" && s.AccessKeySecret != "" && s.Bucket != ""
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

		// Recursively apply defaults to nested structs
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
