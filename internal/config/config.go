package config

import (
	"os"
	"time"
)

type Config struct {
	Port            string
	DBPath          string
	JWTSecret       string
	Domain          string
	UploadDir       string
	MaxUploadBytes  int64
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:            getEnv("BANTER_PORT", "3000"),
		DBPath:          getEnv("BANTER_DB_PATH", "./data/banter.db"),
		JWTSecret:       getEnv("BANTER_JWT_SECRET", ""),
		Domain:          getEnv("BANTER_DOMAIN", "localhost"),
		UploadDir:       getEnv("BANTER_UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:  10 << 20,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
