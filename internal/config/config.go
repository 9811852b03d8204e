package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	PublicBaseURL      string // Base URL under which published/downloaded files are served

	// Logging
	PrettyLogging bool // human-readable console output instead of JSON

	// Database
	DatabaseURL    string
	DBMaxOpenConns int

	// Redis (optional terminal-task cache; empty = disabled)
	RedisURL string

	// Remote generation service (signed image-to-video API)
	GenAccessKeyID     string
	GenSecretAccessKey string
	GenEndpoint        string
	GenRegion          string
	GenService         string
	GenSchema          string

	// Generation defaults
	DefaultAspectRatio string

	// Storage areas
	WorksDir     string // append-only durable area for assembled artifacts
	VideosDir    string // durable area for downloaded generation results
	TempDir      string // root for per-request temporary workspaces
	MusicDir     string // background track library
	SceneCatalog map[string]string // symbolic catalog key -> local file path
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		PrettyLogging:      getEnvBool("LOG_PRETTY", false),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 10),
		RedisURL:           getEnv("REDIS_URL", ""),
		GenAccessKeyID:     getEnv("GEN_ACCESS_KEY_ID", ""),
		GenSecretAccessKey: getEnv("GEN_SECRET_ACCESS_KEY", ""),
		GenEndpoint:        getEnv("GEN_ENDPOINT", "visual.volcengineapi.com"),
		GenRegion:          getEnv("GEN_REGION", "cn-north-1"),
		GenService:         getEnv("GEN_SERVICE", "cv"),
		GenSchema:          getEnv("GEN_SCHEMA", "https"),
		DefaultAspectRatio: getEnv("DEFAULT_ASPECT_RATIO", "16:9"),
		WorksDir:           getEnv("WORKS_DIR", "data/works"),
		VideosDir:          getEnv("VIDEOS_DIR", "data/videos"),
		TempDir:            getEnv("TEMP_DIR", os.TempDir()),
		MusicDir:           getEnv("MUSIC_DIR", "data/musics"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GenAccessKeyID == "" || cfg.GenSecretAccessKey == "" {
		return nil, fmt.Errorf("GEN_ACCESS_KEY_ID and GEN_SECRET_ACCESS_KEY are required")
	}

	// The scene catalog maps symbolic keys to local files. It is deployment
	// data, not code, so it is loaded from a JSON file when configured.
	catalogPath := getEnv("SCENE_CATALOG_PATH", "")
	if catalogPath != "" {
		catalog, err := loadSceneCatalog(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scene catalog: %w", err)
		}
		cfg.SceneCatalog = catalog
	}

	return cfg, nil
}

func loadSceneCatalog(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	catalog := make(map[string]string)
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("invalid catalog JSON in %s: %w", path, err)
	}

	return catalog, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
