package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/faceprints/internal/constants"
)

type Config struct {
	Index     IndexConfig
	Embedding EmbeddingConfig
	Web       WebConfig
	Log       LogConfig
}

type IndexConfig struct {
	Dir string // defaults to ~/.faceprints
	Dim int    // 0 lets the first stored sample decide
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type WebConfig struct {
	Host           string   // defaults to 127.0.0.1
	Port           int      // defaults to 8080
	APIToken       string   // bearer token required by the API when set
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

// Addr returns the listen address for the HTTP server
func (c *WebConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

type LogConfig struct {
	Level string // zap level name, defaults to info (debug with Debug)
	Debug bool   // development logger
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
// Returns false if the env var is unset or not a valid boolean.
func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, skipping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultIndexDir returns ~/.faceprints, or .faceprints in the working
// directory when the home directory is unknown.
func DefaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return constants.DefaultIndexDirName
	}
	return filepath.Join(home, constants.DefaultIndexDirName)
}

func Load() *Config {
	return &Config{
		Index: IndexConfig{
			Dir: envString("FACEPRINTS_DIR", DefaultIndexDir()),
			Dim: envInt("FACEPRINTS_DIM", 0),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", constants.DefaultEmbeddingURL),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", constants.DefaultWebHost),
			Port:           envInt("WEB_PORT", constants.DefaultWebPort),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level: strings.ToLower(os.Getenv("LOG_LEVEL")),
			Debug: envBool("FACEPRINTS_DEBUG"),
		},
	}
}
