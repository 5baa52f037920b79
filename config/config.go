// config/config.go
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	Port        string
	MongoURL    string
	DBName      string
	Environment string

	JWTKey        []byte
	JWTExpiration time.Duration

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	AdminEmail    string
	AdminPassword string

	RequestTimeout time.Duration
	WSWriteTimeout time.Duration
	CORSOrigins    []string
)

func LoadConfig() {
	Port = getEnv("PORT", "8001")
	MongoURL = getEnv("MONGO_URL", "mongodb://localhost:27017")
	DBName = getEnv("DB_NAME", "beatspace")
	Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	JWTKey = []byte(os.Getenv("JWT_SECRET"))
	if len(JWTKey) == 0 {
		slog.Warn("JWT_SECRET not set, using development secret", "event", "config_default")
		JWTKey = []byte("beatspace-dev-secret")
	}

	JWTExpiration = 480 * time.Minute
	if raw := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			slog.Warn("invalid ACCESS_TOKEN_EXPIRE_MINUTES, using 480", "value", raw)
		} else {
			JWTExpiration = time.Duration(minutes) * time.Minute
		}
	}

	CloudinaryCloudName = os.Getenv("CLOUDINARY_CLOUD_NAME")
	CloudinaryAPIKey = os.Getenv("CLOUDINARY_API_KEY")
	CloudinaryAPISecret = os.Getenv("CLOUDINARY_API_SECRET")

	AdminEmail = getEnv("ADMIN_EMAIL", "admin@beatspace.com")
	AdminPassword = getEnv("ADMIN_PASSWORD", "admin123")

	RequestTimeout = getDuration("REQUEST_TIMEOUT", 15*time.Second)
	WSWriteTimeout = getDuration("WS_WRITE_TIMEOUT", 10*time.Second)

	CORSOrigins = nil
	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			CORSOrigins = append(CORSOrigins, origin)
		}
	}
}

func IsProduction() bool {
	return Environment == "production"
}

func getEnv(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func getDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	dur, err := time.ParseDuration(raw)
	if err != nil || dur <= 0 {
		slog.Warn("invalid duration, using default", "name", name, "value", raw, "default", fallback.String())
		return fallback
	}
	return dur
}
