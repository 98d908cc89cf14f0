package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/transport"
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	Port           string
	DataDir        string
	StorageType    string
	Bucket         string
	Region         string
	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminEmail     string
	AdminPassword  string
	PublicBaseURL  string
	MaxUploadBytes int64
	ProxyTimeout   time.Duration
}

// LoadConfig loads .env when present and reads the environment.
func LoadConfig() Config {
	_ = godotenv.Load()
	return Config{
		Port:           normalizePort(getenv("PORT", transport.DefaultServerPort)),
		DataDir:        getenv("DATA_DIR", "server_data"),
		StorageType:    strings.ToLower(getenv("STORAGE_TYPE", "local")),
		Bucket:         os.Getenv("AWS_BUCKET"),
		Region:         os.Getenv("AWS_REGION"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getenvDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		PublicBaseURL:  strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		MaxUploadBytes: getenvInt64("MAX_UPLOAD_BYTES", 50<<20),
		ProxyTimeout:   getenvDuration("PDF_PROXY_TIMEOUT", 30*time.Second),
	}
}

func normalizePort(port string) string {
	if port == "" {
		return transport.DefaultServerPort
	}
	if port[0] != ':' && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if minutes, err := strconv.Atoi(val); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
