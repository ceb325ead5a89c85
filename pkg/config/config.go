package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	FeedStrategyRead  = "read"
	FeedStrategyWrite = "write"
)

type Config struct {
	Port                    string
	Env                     string
	LogLevel                string
	PostgresUrl             string
	MongoURI                string
	MongoDatabase           string
	FirebaseCredentialsPath string
	JWTSecret               string
	JWTTTL                  time.Duration
	FeedStrategy            string
	TimelineCap             int
	PruneSchedule           string
	StoreMaxRetries         int
	BcryptCost              int
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, assuming environment variables are set.")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POSTGRES_URL", "host=localhost user=postgres password=postgres dbname=snapfeed port=5432 sslmode=disable")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "snapfeed")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	v.SetDefault("JWT_SECRET", "supersecretjwtkey")
	v.SetDefault("JWT_TTL", "72h")
	v.SetDefault("FEED_STRATEGY", FeedStrategyRead)
	v.SetDefault("FEED_TIMELINE_CAP", 800)
	v.SetDefault("FEED_PRUNE_SCHEDULE", "@every 15m")
	v.SetDefault("STORE_MAX_RETRIES", 3)
	v.SetDefault("BCRYPT_COST", 10)

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		PostgresUrl:             v.GetString("POSTGRES_URL"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DATABASE"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		JWTTTL:                  v.GetDuration("JWT_TTL"),
		FeedStrategy:            strings.ToLower(v.GetString("FEED_STRATEGY")),
		TimelineCap:             v.GetInt("FEED_TIMELINE_CAP"),
		PruneSchedule:           v.GetString("FEED_PRUNE_SCHEDULE"),
		StoreMaxRetries:         v.GetInt("STORE_MAX_RETRIES"),
		BcryptCost:              v.GetInt("BCRYPT_COST"),
	}

	if cfg.FeedStrategy != FeedStrategyWrite {
		cfg.FeedStrategy = FeedStrategyRead
	}
	if cfg.TimelineCap <= 0 {
		cfg.TimelineCap = 800
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 72 * time.Hour
	}
	return cfg
}
