package app

import (
	"strings"
	"time"

	"github.com/voxlane/voxlane-backend/internal/pkg/envutil"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
)

type Config struct {
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CatalogPath     string
	VoiceWebhookURL string
	AllowedOrigins  []string
	Port            string
	Environment     string
	Version         string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := envutil.String("JWT_SECRET_KEY", "")
	if jwtSecretKey == "" {
		jwtSecretKey = "defaultsecret"
		log.Warn("JWT_SECRET_KEY not set, using insecure default")
	}

	var origins []string
	for _, o := range strings.Split(envutil.String("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		JWTSecretKey:    jwtSecretKey,
		AccessTokenTTL:  time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second,
		RefreshTokenTTL: time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 86400)) * time.Second,
		CatalogPath:     envutil.String("CATALOG_PATH", ""),
		VoiceWebhookURL: envutil.String("VOICE_WEBHOOK_URL", ""),
		AllowedOrigins:  origins,
		Port:            envutil.String("PORT", "8080"),
		Environment:     envutil.String("ENVIRONMENT", "development"),
		Version:         envutil.String("SERVICE_VERSION", "dev"),
	}
}
