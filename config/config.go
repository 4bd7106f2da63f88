package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Config struct {
	MongoURI    string
	MongoClient *mongo.Client
	DBName      string

	Port string
	Env  string

	// Sandbox completes donations on creation instead of waiting for the
	// payment gateway callback.
	Sandbox bool
	// DemoStats serves placeholder stats while the ledger total is zero.
	DemoStats bool

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	StatsCacheTTL time.Duration

	ReconcileInterval time.Duration
	ReconcileBatch    int

	LiqPayPublicKey  string
	LiqPayPrivateKey string

	CORSOrigins []string

	Logger *zap.Logger
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	env := getEnv("APP_ENV", "development")
	sandbox, err := getEnvAsBool("PAYMENT_SANDBOX", env != "production")
	if err != nil {
		return nil, err
	}
	demo, err := getEnvAsBool("DEMO_STATS", false)
	if err != nil {
		return nil, err
	}

	jwtTTL, err := getEnvAsDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvAsDuration("STATS_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, err
	}
	interval, err := getEnvAsDuration("RECONCILE_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	batch, err := getEnvAsInt("RECONCILE_BATCH", 100)
	if err != nil {
		return nil, err
	}

	var origins []string
	for _, o := range strings.Split(getEnv("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:            getEnv("DB_NAME", "shelter"),
		Port:              getEnv("PORT", "8080"),
		Env:               env,
		Sandbox:           sandbox,
		DemoStats:         demo,
		JWTSecret:         secret,
		JWTTTL:            jwtTTL,
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		StatsCacheTTL:     cacheTTL,
		ReconcileInterval: interval,
		ReconcileBatch:    batch,
		LiqPayPublicKey:   os.Getenv("LIQPAY_PUBLIC_KEY"),
		LiqPayPrivateKey:  os.Getenv("LIQPAY_PRIVATE_KEY"),
		CORSOrigins:       origins,
	}, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// NewLogger returns a production zap logger in production and a
// development one otherwise.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ConnectMongo dials MongoDB and verifies the connection.
func (c *Config) ConnectMongo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.MongoURI))
	if err != nil {
		return fmt.Errorf("unable to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("unable to ping mongo: %w", err)
	}
	c.MongoClient = client
	return nil
}

func (c *Config) DB() *mongo.Database {
	return c.MongoClient.Database(c.DBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
