package config

import (
	"flag"
	"strings"
	"time"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	LogLevel   string
	ListenAddr string

	Storage          string // postgres or memory
	PostgresAddr     string // Postgres address in host[:port] format
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	RunMigrations    bool

	RedisAddr     string // Redis address in host[:port] format
	RedisUser     string // Redis user
	RedisPassword string // Redis password

	DistributedLock bool
	LockTTL         time.Duration
	LockWait        time.Duration

	ReserveRetries    int
	ReserveRetryDelay time.Duration

	RentalsLimit    int // rental requests per user per day, 0 disables the limit
	LimiterFailOpen bool
	CacheCarts      bool
	CartTTL         time.Duration

	AttemptsBatchSize     int
	AttemptsFlushInterval time.Duration

	KafkaBrokers string // comma separated, empty disables publishing
	KafkaTopic   string

	OTLPEndpoint string
	ServiceName  string

	JWTSecret string // empty means the gateway's X-User-ID/X-User-Role headers are trusted

	// Catalog seeder params
	SeedItems   int
	SeedSellers int
}

func New() *Config {
	c := &Config{}

	flag.StringVar(&c.LogLevel, "logLevel", LookupEnvString("LOG_LEVEL", "DEBUG"), "Set log level: DEBUG, INFO, WARN, ERROR.")
	flag.StringVar(&c.ListenAddr, "listenAddr", LookupEnvString("LISTEN_ADDR", ":8000"), `Address in form of "[host]:port" that HTTP server should be listening on.`)

	flag.StringVar(&c.Storage, "storage", LookupEnvString("STORAGE", StoragePostgres), "Storage backend: postgres or memory. Memory storage is lost on restart.")
	flag.StringVar(&c.PostgresAddr, "postgresAddr", LookupEnvString("POSTGRES_ADDR", "127.0.0.1:5432"), "Set PostgreSQL address as host:port, where port is optional (without TLS).")
	flag.StringVar(&c.PostgresDB, "postgresDB", LookupEnvString("POSTGRES_DB", "rentalstore"), "Set PostgreSQL DB.")
	flag.StringVar(&c.PostgresUser, "postgresUser", LookupEnvString("POSTGRES_USER", "develop"), "Set PostgreSQL user.")
	flag.StringVar(&c.PostgresPassword, "postgresPassword", LookupEnvString("POSTGRES_PASSWORD", "develop"), "Set PostgreSQL password.")
	flag.BoolVar(&c.RunMigrations, "migrate", LookupEnvBool("RUN_MIGRATIONS", true), "Apply schema migrations on start.")

	flag.StringVar(&c.RedisAddr, "redisAddr", LookupEnvString("REDIS_ADDR", "127.0.0.1:6379"), "Redis address in host[:port] format. Empty disables every Redis-backed feature.")
	flag.StringVar(&c.RedisUser, "redisUser", LookupEnvString("REDIS_USER", ""), "Redis user.")
	flag.StringVar(&c.RedisPassword, "redisPassword", LookupEnvString("REDIS_PASSWORD", ""), "Redis password.")

	flag.BoolVar(&c.DistributedLock, "distributedLock", LookupEnvBool("DISTRIBUTED_LOCK", false), "Also lock items in Redis. Needed when several instances share one database.")
	flag.DurationVar(&c.LockTTL, "lockTTL", LookupEnvDuration("LOCK_TTL", 10*time.Second), "How long a Redis item lock lives if its holder dies.")
	flag.DurationVar(&c.LockWait, "lockWait", LookupEnvDuration("LOCK_WAIT", 2*time.Second), "How long to wait for a Redis item lock before reporting a conflict.")

	flag.IntVar(&c.ReserveRetries, "reserveRetries", LookupEnvInt("RESERVE_RETRIES", 3), "How many times a conflicting reservation or checkout is attempted.")
	flag.DurationVar(&c.ReserveRetryDelay, "reserveRetryDelay", LookupEnvDuration("RESERVE_RETRY_DELAY", 20*time.Millisecond), "Base delay between reservation attempts, doubled on every retry.")

	flag.IntVar(&c.RentalsLimit, "rentalsLimit", LookupEnvInt("RENTALS_LIMIT", 20), "Number of rental requests a single user can make per day. 0 disables the limit.")
	flag.BoolVar(&c.LimiterFailOpen, "limiterFailOpen", LookupEnvBool("LIMITER_FAIL_OPEN", false), "Set to make limiter allow request if failed to check limits.")
	flag.BoolVar(&c.CacheCarts, "cacheCarts", LookupEnvBool("CACHE_CARTS", false), "Set to keep carts in Redis in front of the database.")
	flag.DurationVar(&c.CartTTL, "cartTTL", LookupEnvDuration("CART_TTL", time.Hour), "How long a cached cart lives.")

	flag.IntVar(&c.AttemptsBatchSize, "attemptsBatchSize", LookupEnvInt("ATTEMPTS_BATCH_SIZE", 500), "Number of reservation attempts to be stored in buffer before being flushed.")
	flag.DurationVar(&c.AttemptsFlushInterval, "attemptsFlushInterval", LookupEnvDuration("ATTEMPTS_FLUSH_INTERVAL", 10*time.Second), "How often reservation attempts buffer should be flushed.")

	flag.StringVar(&c.KafkaBrokers, "kafkaBrokers", LookupEnvString("KAFKA_BROKERS", ""), "Comma separated Kafka brokers for domain events. Empty disables publishing.")
	flag.StringVar(&c.KafkaTopic, "kafkaTopic", LookupEnvString("KAFKA_TOPIC", "rental-store.events"), "Kafka topic for domain events.")

	flag.StringVar(&c.OTLPEndpoint, "otlpEndpoint", LookupEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP/HTTP endpoint for traces, e.g. http://tempo:4318. Empty disables tracing.")
	flag.StringVar(&c.ServiceName, "serviceName", LookupEnvString("SERVICE_NAME", "rental-store"), "Service name reported in traces.")

	flag.StringVar(&c.JWTSecret, "jwtSecret", LookupEnvString("JWT_SECRET", ""), "HS256 secret of identity tokens.")

	flag.IntVar(&c.SeedItems, "seedItems", LookupEnvInt("SEED_ITEMS", 100), "Number of items to generate (only for catalog-seeder).")
	flag.IntVar(&c.SeedSellers, "seedSellers", LookupEnvInt("SEED_SELLERS", 5), "Number of sellers generated items are spread over (only for catalog-seeder).")

	flag.Parse()

	return c
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
