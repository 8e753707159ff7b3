package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
)

type AppConfig struct {
	HTTPPort     string
	Env          string
	AppURL       string
	JWTSecret    string
	DatabaseDSN  string
	DBDriver     string
	EventLogDir  string
	WebhookURL   string
	WebhookToken string
	Postgres     PostgresConfig
	Storage      StorageConfig
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

func Load() *AppConfig {
	pg := PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", ""),
		Port:     getEnv("POSTGRES_PORT", ""),
		User:     getEnv("POSTGRES_USER", ""),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		DBName:   getEnv("POSTGRES_DB", ""),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}

	storage := StorageConfig{
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		Bucket:    getEnv("STORAGE_BUCKET", ""),
		Region:    getEnv("STORAGE_REGION", ""),
		UseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
		PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
	}

	dsn := getEnv("DATABASE_DSN", "")
	driver := strings.ToLower(getEnv("DB_DRIVER", ""))

	if driver == "" {
		switch {
		case strings.HasPrefix(strings.ToLower(dsn), "postgres"):
			driver = "postgres"
		case pg.Host != "":
			driver = "postgres"
		default:
			driver = "memory"
		}
	}

	if driver == "postgres" && dsn == "" {
		dsn = buildPostgresDSN(pg)
	}

	return &AppConfig{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		Env:          getEnv("APP_ENV", "development"),
		AppURL:       getEnv("APP_URL", "http://localhost:8080"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		DatabaseDSN:  dsn,
		DBDriver:     driver,
		EventLogDir:  getEnv("EVENT_LOG_DIR", ""),
		WebhookURL:   strings.TrimSpace(getEnv("REGISTRATION_WEBHOOK_URL", "")),
		WebhookToken: strings.TrimSpace(getEnv("REGISTRATION_WEBHOOK_TOKEN", "")),
		Postgres:     pg,
		Storage:      storage,
	}
}

func buildPostgresDSN(pg PostgresConfig) string {
	host := pg.Host
	if host == "" {
		host = "localhost"
	}
	port := pg.Port
	if port == "" {
		port = "5432"
	}
	ssl := pg.SSLMode
	if ssl == "" {
		ssl = "disable"
	}

	u := &url.URL{Scheme: "postgres"}
	if pg.User != "" {
		if pg.Password != "" {
			u.User = url.UserPassword(pg.User, pg.Password)
		} else {
			u.User = url.User(pg.User)
		}
	}
	u.Host = fmt.Sprintf("%s:%s", host, port)
	if pg.DBName != "" {
		u.Path = pg.DBName
	}
	q := u.Query()
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func MustLoad() *AppConfig {
	cfg := Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET required")
	}
	if cfg.DBDriver == "postgres" && cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN required for postgres driver")
	}
	return cfg
}
