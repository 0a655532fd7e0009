package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"flow-metrics/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the connection and filesystem settings taken from the environment.
type AppConfig struct {
	Jira                jira.Config
	DataPath            string
	LogDir              string
	SnapshotDir         string
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		logDir = filepath.Join(dataPath, "logs")
	}
	snapshotDir := filepath.Join(dataPath, "snapshots")

	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", snapshotDir).Msg("Failed to create snapshot directory")
	}

	delaySecs, _ := strconv.Atoi(getEnv("JIRA_REQUEST_DELAY_SECONDS", "1"))

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      getEnv("JIRA_URL", ""),
			Token:        getEnv("JIRA_TOKEN", ""),
			Username:     getEnv("JIRA_USERNAME", ""),
			Password:     getEnv("JIRA_PASSWORD", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			GCILB:        getEnv("JIRA_GCILB", ""),
			GCLB:         getEnv("JIRA_GCLB", ""),
			RequestDelay: time.Duration(delaySecs) * time.Second,
		},
		DataPath:            dataPath,
		LogDir:              logDir,
		SnapshotDir:         snapshotDir,
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", true),
	}

	return cfg, nil
}

// HasCredentials reports whether any Jira authentication is configured.
func (c *AppConfig) HasCredentials() bool {
	j := c.Jira
	return j.Token != "" || (j.Username != "" && j.Password != "") || j.SessionID != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
