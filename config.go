package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/CrowderSoup/collab-board/services"
)

type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

type Config struct {
	Port               string              `yaml:"port"`
	Database           DatabaseConfig      `yaml:"database"`
	Auth               services.AuthConfig `yaml:"auth"`
	S3                 services.S3Config   `yaml:"s3"`
	CORSAllowedOrigins []string            `yaml:"cors_allowed_origins"`
}

func defaultConfig() Config {
	return Config{
		Port:               "3001",
		Database:           DatabaseConfig{Driver: "sqlite", Path: "./data/board.db"},
		S3:                 services.S3Config{Region: "us-east-1"},
		CORSAllowedOrigins: []string{"*"},
	}
}

// LoadConfig builds the server configuration from the defaults, the YAML
// file at path (skipped when it does not exist) and finally the
// environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Database.Driver != "sqlite" && cfg.Database.Driver != "postgres" {
		return Config{}, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" {
		return Config{}, errors.New("DATABASE_URL is required for the postgres driver")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	set(&cfg.Port, "PORT")
	set(&cfg.Database.Driver, "DATABASE_DRIVER")
	set(&cfg.Database.Path, "DATABASE_PATH")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Auth.JWTSecret, "JWT_SECRET")
	set(&cfg.Auth.SMTP.Host, "SMTP_HOST")
	set(&cfg.Auth.SMTP.Port, "SMTP_PORT")
	set(&cfg.Auth.SMTP.Username, "SMTP_USERNAME")
	set(&cfg.Auth.SMTP.Password, "SMTP_PASSWORD")
	set(&cfg.Auth.SMTP.From, "SMTP_FROM")
	set(&cfg.S3.Endpoint, "S3_ENDPOINT")
	set(&cfg.S3.Bucket, "S3_BUCKET")
	set(&cfg.S3.Region, "S3_REGION")
	set(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	set(&cfg.S3.SecretKey, "S3_SECRET_KEY")

	if v, ok := os.LookupEnv("S3_USE_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid S3_USE_PATH_STYLE: %w", err)
		}
		cfg.S3.UsePathStyle = b
	}
	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORSAllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}
	return nil
}

// LoadEnv loads environment variables from a .env file
func LoadEnv(filename string) error {
	// Open the .env file
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on the first equals sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue // Skip malformed lines
		}

		key := strings.TrimSpace(strings.TrimPrefix(parts[0], "export "))
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Variables already in the environment win over the file
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, value)
	}

	return scanner.Err()
}
