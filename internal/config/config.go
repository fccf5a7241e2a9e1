package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Coupon    CouponConfig    `json:"coupon"`
	Promo     PromoConfig     `json:"promo"`
	Payment   PaymentConfig   `json:"payment"`
	Analytics AnalyticsConfig `json:"analytics"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Deals       string `json:"deals"`
	Coupons     string `json:"coupons"`
	Redemptions string `json:"redemptions"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// CouponConfig описывает формат кодов и сроки действия купонов.
// Формат кода фиксированный: коды переписываются людьми вручную в точке
// продаж, поэтому префикс/алфавит/длина меняются только через конфигурацию.
type CouponConfig struct {
	CodePrefix       string `json:"code_prefix"`
	CodeSuffixLength int    `json:"code_suffix_length"`
	CodeAlphabet     string `json:"code_alphabet"`
	ValidityDays     int    `json:"validity_days"`
	MaxCodeRetries   int    `json:"max_code_retries"`
}

// PromoConfig хранит глобальное промо-окно и единицу тарификации.
type PromoConfig struct {
	EndDate     time.Time `json:"end_date"`
	PricingUnit string    `json:"pricing_unit"` // credits | currency
}

// PaymentConfig описывает настройки платёжного провайдера.
type PaymentConfig struct {
	Provider          string `json:"provider"` // offline | gateway
	GatewayURL        string `json:"gateway_url"`
	MerchantID        string `json:"merchant_id"`
	PendingTTLMinutes int    `json:"pending_ttl_minutes"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
}

// AnalyticsConfig хранит настройки аналитики купонов.
type AnalyticsConfig struct {
	CacheTTLMinutes       int    `json:"cache_ttl_minutes"`
	MaxRangeDays          int    `json:"max_range_days"`
	DefaultGroupBy        string `json:"default_group_by"`
	DefaultTopDealLimit   int    `json:"default_top_deal_limit"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// DefaultCodeAlphabet исключает символы, которые легко перепутать при ручном
// вводе (0/O, 1/I/L).
const DefaultCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "dealhub_user"),
			Password: getEnv("DB_PASSWORD", "dealhub_pass"),
			DBName:   getEnv("DB_NAME", "dealhub"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "dealhub"),
			Topics: Topics{
				Deals:       getEnv("KAFKA_TOPIC_DEALS", "deals"),
				Coupons:     getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
				Redemptions: getEnv("KAFKA_TOPIC_REDEMPTIONS", "redemptions"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Coupon: CouponConfig{
			CodePrefix:       getEnv("COUPON_CODE_PREFIX", "DEAL"),
			CodeSuffixLength: getEnvAsInt("COUPON_CODE_SUFFIX_LENGTH", 6),
			CodeAlphabet:     getEnv("COUPON_CODE_ALPHABET", DefaultCodeAlphabet),
			ValidityDays:     getEnvAsInt("COUPON_VALIDITY_DAYS", 90),
			MaxCodeRetries:   getEnvAsInt("COUPON_MAX_CODE_RETRIES", 5),
		},
		Promo: PromoConfig{
			EndDate:     getEnvAsTime("PROMO_END_DATE", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)),
			PricingUnit: getEnv("PRICING_UNIT", "credits"),
		},
		Payment: PaymentConfig{
			Provider:          getEnv("PAYMENT_PROVIDER", "offline"),
			GatewayURL:        getEnv("PAYMENT_GATEWAY_URL", ""),
			MerchantID:        getEnv("PAYMENT_MERCHANT_ID", ""),
			PendingTTLMinutes: getEnvAsInt("PAYMENT_PENDING_TTL_MINUTES", 30),
			TimeoutSeconds:    getEnvAsInt("PAYMENT_TIMEOUT_SECONDS", 5),
		},
		Analytics: AnalyticsConfig{
			CacheTTLMinutes:       getEnvAsInt("ANALYTICS_CACHE_TTL_MINUTES", 10),
			MaxRangeDays:          getEnvAsInt("ANALYTICS_MAX_RANGE_DAYS", 365),
			DefaultGroupBy:        getEnv("ANALYTICS_DEFAULT_GROUP_BY", "none"),
			DefaultTopDealLimit:   getEnvAsInt("ANALYTICS_DEFAULT_TOP_DEAL_LIMIT", 5),
			RequestTimeoutSeconds: getEnvAsInt("ANALYTICS_REQUEST_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}

// getEnvAsTime парсит переменную окружения в формате RFC3339
func getEnvAsTime(key string, defaultValue time.Time) time.Time {
	valueStr := getEnv(key, "")
	if value, err := time.Parse(time.RFC3339, valueStr); err == nil {
		return value
	}
	return defaultValue
}
