package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "MONGO_URL", "DB_NAME", "JWT_SECRET", "ACCESS_TOKEN_EXPIRE_MINUTES", "REQUEST_TIMEOUT", "CORS_ORIGINS", "ENVIRONMENT"} {
		t.Setenv(name, "")
	}
	LoadConfig()

	if Port != "8001" || MongoURL != "mongodb://localhost:27017" || DBName != "beatspace" {
		t.Fatalf("unexpected defaults: %s %s %s", Port, MongoURL, DBName)
	}
	if JWTExpiration != 8*time.Hour {
		t.Fatalf("expected 8h token lifetime, got %v", JWTExpiration)
	}
	if len(JWTKey) == 0 {
		t.Fatalf("expected a development secret")
	}
	if IsProduction() {
		t.Fatalf("default environment must not be production")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENVIRONMENT", "Production")
	LoadConfig()

	if JWTExpiration != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", JWTExpiration)
	}
	if RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", RequestTimeout)
	}
	if len(CORSOrigins) != 2 || CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", CORSOrigins)
	}
	if !IsProduction() {
		t.Fatalf("expected production mode")
	}
}

func TestLoadConfigRejectsBadMinutes(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "soon")
	LoadConfig()
	if JWTExpiration != 8*time.Hour {
		t.Fatalf("expected fallback to 8h, got %v", JWTExpiration)
	}
}
