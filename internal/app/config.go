package app

import (
	"time"

	"github.com/deepen-live/deepen-backend/internal/platform/envutil"
	"github.com/deepen-live/deepen-backend/internal/platform/logger"
)

type Config struct {
	Port            string
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	MetricsAddr     string
	Environment     string
	Version         string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:            envutil.String("PORT", "8080"),
		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL:  envutil.DurationSeconds("ACCESS_TOKEN_TTL", 3600),
		RefreshTokenTTL: envutil.DurationSeconds("REFRESH_TOKEN_TTL", 86400),
		MetricsAddr:     envutil.String("METRICS_ADDR", ""),
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", "dev"),
	}
	if cfg.JWTSecretKey == "defaultsecret" && log != nil {
		log.Warn("JWT_SECRET_KEY not set, using insecure default")
	}
	return cfg
}
