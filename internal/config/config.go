package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the API process.
// All values must come from env (or a .env file loaded by main).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Booking BookingConfig
	Wallet  WalletConfig
	Notify  NotifyConfig
	HTTP    HTTPConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// AdminEmails are provisioned with the staff role at registration.
	AdminEmails []string
}

type BookingConfig struct {
	CancelCutoff   time.Duration
	MaxSeats       int
	BusConcurrency int
	IdempotencyTTL time.Duration
}

type WalletConfig struct {
	Currency   string
	MinDeposit decimal.Decimal
	MaxDeposit decimal.Decimal
}

type NotifyConfig struct {
	// Backend is one of log, amqp, kafka.
	Backend      string
	AMQPURL      string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
}

type HTTPConfig struct {
	CORSAllowedOrigins []string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in withDefaults().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
	c.Auth.AdminEmails = splitList(os.Getenv("ADMIN_EMAILS"))

	c.Booking.CancelCutoff = mustDuration("BOOKING_CANCEL_CUTOFF")
	c.Booking.IdempotencyTTL = mustDuration("IDEMPOTENCY_TTL")
	{
		n, err := optionalInt("BOOKING_MAX_SEATS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Booking.MaxSeats = n
	}
	{
		n, err := optionalInt("BOOKING_BUS_CONCURRENCY")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Booking.BusConcurrency = n
	}

	c.Wallet.Currency = strings.TrimSpace(os.Getenv("WALLET_CURRENCY"))
	{
		d, err := optionalDecimal("WALLET_MIN_DEPOSIT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Wallet.MinDeposit = d
	}
	{
		d, err := optionalDecimal("WALLET_MAX_DEPOSIT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Wallet.MaxDeposit = d
	}

	c.Notify.Backend = strings.TrimSpace(os.Getenv("NOTIFY_BACKEND"))
	c.Notify.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.Notify.AMQPQueue = strings.TrimSpace(os.Getenv("AMQP_QUEUE"))
	c.Notify.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	c.Notify.KafkaTopic = strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))

	c.HTTP.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// withDefaults fills optional settings. Production must still set DB_SSLMODE explicitly.
func (c Config) withDefaults() Config {
	if c.DB.SSLMode == "" && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Booking.CancelCutoff <= 0 {
		c.Booking.CancelCutoff = 6 * time.Hour
	}
	if c.Booking.MaxSeats <= 0 {
		c.Booking.MaxSeats = 10
	}
	if c.Booking.BusConcurrency <= 0 {
		c.Booking.BusConcurrency = 20
	}
	if c.Booking.IdempotencyTTL <= 0 {
		c.Booking.IdempotencyTTL = 24 * time.Hour
	}
	if c.Wallet.Currency == "" {
		c.Wallet.Currency = "INR"
	}
	if c.Wallet.MinDeposit.IsZero() {
		c.Wallet.MinDeposit = decimal.NewFromInt(100)
	}
	if c.Wallet.MaxDeposit.IsZero() {
		c.Wallet.MaxDeposit = decimal.NewFromInt(10000)
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = "log"
	}
	if c.Notify.AMQPQueue == "" {
		c.Notify.AMQPQueue = "booking.events"
	}
	if c.Notify.KafkaTopic == "" {
		c.Notify.KafkaTopic = "booking.events"
	}
	return c
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
	} else if !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Wallet.MinDeposit.IsNegative() || c.Wallet.MinDeposit.IsZero() {
		errs = append(errs, errors.New("WALLET_MIN_DEPOSIT must be positive"))
	}
	if c.Wallet.MaxDeposit.LessThan(c.Wallet.MinDeposit) {
		errs = append(errs, errors.New("WALLET_MAX_DEPOSIT must not be below WALLET_MIN_DEPOSIT"))
	}

	switch c.Notify.Backend {
	case "log":
	case "amqp":
		if c.Notify.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when NOTIFY_BACKEND=amqp"))
		}
	case "kafka":
		if len(c.Notify.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when NOTIFY_BACKEND=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_BACKEND must be one of log, amqp, kafka, got %q", c.Notify.Backend))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalDecimal(key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal amount, got %q", key, v)
	}
	return d, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
