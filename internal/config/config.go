package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/hkdf"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Identity IdentityConfig
	Backend  BackendConfig
	Session  SessionConfig
	Catalog  CatalogConfig
	Storage  StorageConfig
	Email    EmailConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Env            string        `env:"ENV" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	PublicURL      string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	FrontendDir    string        `env:"FRONTEND_DIR" envDefault:"web/dist"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"itqan"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	AutoMigrate       bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// IdentityConfig describes the OIDC tenant (Auth0 in production).
type IdentityConfig struct {
	IssuerURL          string   `env:"AUTH0_ISSUER_URL"`
	ClientID           string   `env:"AUTH0_CLIENT_ID"`
	ClientSecret       string   `env:"AUTH0_CLIENT_SECRET"`
	Audience           string   `env:"AUTH0_AUDIENCE"`
	Scopes             []string `env:"AUTH0_SCOPES" envSeparator:"," envDefault:"openid,profile,email,offline_access"`
	DBConnection       string   `env:"AUTH0_DB_CONNECTION" envDefault:"Username-Password-Authentication"`
	AllowedConnections []string `env:"AUTH0_ALLOWED_CONNECTIONS" envSeparator:"," envDefault:"google-oauth2,github,Username-Password-Authentication"`
	CallbackPath       string   `env:"AUTH0_CALLBACK_PATH" envDefault:"/callback"`
}

type BackendConfig struct {
	BaseURL string        `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"10s"`
}

type SessionConfig struct {
	Secret          string        `env:"SESSION_SECRET"`
	Store           string        `env:"SESSION_STORE" envDefault:"memory"`
	CookieName      string        `env:"SESSION_COOKIE_NAME" envDefault:"itqan_session"`
	TTL             time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	CookieDomain    string        `env:"SESSION_COOKIE_DOMAIN"`
	SameSite        string        `env:"SESSION_COOKIE_SAMESITE" envDefault:"lax"`
}

type CatalogConfig struct {
	Source         string `env:"CATALOG_SOURCE" envDefault:"static"`
	DefaultPerPage int    `env:"CATALOG_DEFAULT_PER_PAGE" envDefault:"12"`
	MaxPerPage     int    `env:"CATALOG_MAX_PER_PAGE" envDefault:"48"`
}

type StorageConfig struct {
	Bucket          string        `env:"S3_BUCKET"`
	Region          string        `env:"S3_REGION" envDefault:"us-east-1"`
	BaseEndpoint    string        `env:"S3_BASE_ENDPOINT"`
	AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
	PresignTTL      time.Duration `env:"S3_PRESIGN_TTL" envDefault:"15m"`
}

type EmailConfig struct {
	Enabled     bool   `env:"EMAIL_ENABLED" envDefault:"false"`
	AWSRegion   string `env:"EMAIL_AWS_REGION" envDefault:"us-east-1"`
	FromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"no-reply@itqan.dev"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Identity.IssuerURL == "" {
		return fmt.Errorf("AUTH0_ISSUER_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Identity.IssuerURL); err != nil {
		return fmt.Errorf("AUTH0_ISSUER_URL is not a valid URL: %w", err)
	}
	if c.Identity.ClientID == "" {
		return fmt.Errorf("AUTH0_CLIENT_ID is required")
	}

	if err := validateSessionSecret(c.Session.Secret, c.Server.Env); err != nil {
		return err
	}

	switch c.Session.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("SESSION_STORE must be one of memory, postgres (got %q)", c.Session.Store)
	}
	switch c.Catalog.Source {
	case "static", "postgres":
	default:
		return fmt.Errorf("CATALOG_SOURCE must be one of static, postgres (got %q)", c.Catalog.Source)
	}

	if c.UsesDatabase() && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when postgres is enabled")
	}

	if c.Catalog.DefaultPerPage < 1 || c.Catalog.MaxPerPage < c.Catalog.DefaultPerPage {
		return fmt.Errorf("invalid catalog page sizes: default %d, max %d",
			c.Catalog.DefaultPerPage, c.Catalog.MaxPerPage)
	}

	if len(c.Server.AllowedOrigins) == 0 && !c.IsProduction() {
		c.Server.AllowedOrigins = developmentOrigins()
	}
	for i, origin := range c.Server.AllowedOrigins {
		c.Server.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return nil
}

// validateSessionSecret enforces minimum strength for the secret that signs
// session-related material.
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// IsProduction reports whether the gateway runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// UsesDatabase reports whether any component is backed by PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.Session.Store == "postgres" || c.Catalog.Source == "postgres"
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.IsProduction() || strings.HasPrefix(c.Server.PublicURL, "https://")
}

// CallbackURL is the absolute redirect URI registered with the identity provider.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.Server.PublicURL, "/") + c.Identity.CallbackPath
}

// DeriveKey derives a purpose-bound 32-byte key from the session secret so a
// single configured secret never signs two kinds of material.
func (c *SessionConfig) DeriveKey(purpose string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(c.Secret), nil, []byte("itqan-gateway:"+purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", purpose, err)
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func developmentOrigins() []string {
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
