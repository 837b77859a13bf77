package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Gateway  GatewayConfig
	Frontend FrontendConfig
	Mail     MailConfig
	Order    OrderConfig
	Reclaim  ReclaimConfig

	JWTSecret string // JWT署名シークレット
}

type ServerConfig struct {
	Port string // サーバーポート（8080）
	Env  string // development/production
}

type DatabaseConfig struct {
	URL string // DATABASE_URL。空ならPOSTGRES_*から組み立てる

	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string // 空ならロックなしで回収ジョブを動かす
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers    []string // 空ならイベントはログに出すだけ
	TopicOrder string
}

type ObservabilityConfig struct {
	JaegerEndpoint string // 空ならトレースを送らない
	ServiceName    string
}

// SSLCommerz
type GatewayConfig struct {
	StoreID       string
	StorePassword string
	InitURL       string
	ValidationURL string
	// 決済後にゲートウェイがPOSTしてくるこのAPIのURL
	CallbackBaseURL string
	Timeout         time.Duration
	Currency        string
}

// 決済結果のリダイレクト先
type FrontendConfig struct {
	SuccessURL string
	FailURL    string
	CancelURL  string
}

type MailConfig struct {
	Host     string // 空ならメール送信しない
	Port     int
	Username string
	Password string
	From     string
}

type OrderConfig struct {
	InsideDhakaCharge  decimal.Decimal
	OutsideDhakaCharge decimal.Decimal
}

type ReclaimConfig struct {
	Interval  time.Duration
	Staleness time.Duration
	BatchSize int
	LockTTL   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "shop")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_TOPIC_ORDER", "order-events")
	v.SetDefault("OTEL_SERVICE_NAME", "shop-api")

	v.SetDefault("SSLCOMMERZ_INIT_URL", "https://sandbox.sslcommerz.com/gwprocess/v4/api.php")
	v.SetDefault("SSLCOMMERZ_VALIDATION_URL", "https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php")
	v.SetDefault("SSLCOMMERZ_CALLBACK_BASE_URL", "http://localhost:8080")
	v.SetDefault("SSLCOMMERZ_TIMEOUT", "15s")
	v.SetDefault("CURRENCY", "BDT")

	v.SetDefault("FRONTEND_SUCCESS_URL", "http://localhost:3000/payment/success")
	v.SetDefault("FRONTEND_FAIL_URL", "http://localhost:3000/payment/fail")
	v.SetDefault("FRONTEND_CANCEL_URL", "http://localhost:3000/payment/cancel")

	v.SetDefault("SMTP_PORT", 587)

	v.SetDefault("DELIVERY_CHARGE_INSIDE_DHAKA", "60")
	v.SetDefault("DELIVERY_CHARGE_OUTSIDE_DHAKA", "120")

	v.SetDefault("RECLAIM_INTERVAL", "30m")
	v.SetDefault("RECLAIM_STALENESS", "30m")
	v.SetDefault("RECLAIM_BATCH_SIZE", 200)
	v.SetDefault("RECLAIM_LOCK_TTL", "25m")
}

// Loadは .env（あれば）と環境変数から読む
func Load() (Config, error) {
	//.envが無いのは正常
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	inside, err := decimal.NewFromString(v.GetString("DELIVERY_CHARGE_INSIDE_DHAKA"))
	if err != nil {
		return Config{}, fmt.Errorf("DELIVERY_CHARGE_INSIDE_DHAKA must be number: %w", err)
	}
	outside, err := decimal.NewFromString(v.GetString("DELIVERY_CHARGE_OUTSIDE_DHAKA"))
	if err != nil {
		return Config{}, fmt.Errorf("DELIVERY_CHARGE_OUTSIDE_DHAKA must be number: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Name:     v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			TopicOrder: v.GetString("KAFKA_TOPIC_ORDER"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: v.GetString("JAEGER_ENDPOINT"),
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
		},
		Gateway: GatewayConfig{
			StoreID:         v.GetString("SSLCOMMERZ_STORE_ID"),
			StorePassword:   v.GetString("SSLCOMMERZ_STORE_PASSWORD"),
			InitURL:         v.GetString("SSLCOMMERZ_INIT_URL"),
			ValidationURL:   v.GetString("SSLCOMMERZ_VALIDATION_URL"),
			CallbackBaseURL: strings.TrimRight(v.GetString("SSLCOMMERZ_CALLBACK_BASE_URL"), "/"),
			Timeout:         v.GetDuration("SSLCOMMERZ_TIMEOUT"),
			Currency:        v.GetString("CURRENCY"),
		},
		Frontend: FrontendConfig{
			SuccessURL: v.GetString("FRONTEND_SUCCESS_URL"),
			FailURL:    v.GetString("FRONTEND_FAIL_URL"),
			CancelURL:  v.GetString("FRONTEND_CANCEL_URL"),
		},
		Mail: MailConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		Order: OrderConfig{
			InsideDhakaCharge:  inside,
			OutsideDhakaCharge: outside,
		},
		Reclaim: ReclaimConfig{
			Interval:  v.GetDuration("RECLAIM_INTERVAL"),
			Staleness: v.GetDuration("RECLAIM_STALENESS"),
			BatchSize: v.GetInt("RECLAIM_BATCH_SIZE"),
			LockTTL:   v.GetDuration("RECLAIM_LOCK_TTL"),
		},
		JWTSecret: v.GetString("JWT_SECRET"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

//必須チェック
func (c Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required")
	}
	if c.IsProduction() {
		if c.Gateway.StoreID == "" {
			return fmt.Errorf("SSLCOMMERZ_STORE_ID is required")
		}
		if c.Gateway.StorePassword == "" {
			return fmt.Errorf("SSLCOMMERZ_STORE_PASSWORD is required")
		}
	}
	if c.Order.InsideDhakaCharge.IsNegative() || c.Order.OutsideDhakaCharge.IsNegative() {
		return fmt.Errorf("delivery charge must not be negative")
	}
	if c.Reclaim.Interval <= 0 {
		return fmt.Errorf("RECLAIM_INTERVAL must be positive")
	}
	if c.Reclaim.Staleness <= 0 {
		return fmt.Errorf("RECLAIM_STALENESS must be positive")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("SSLCOMMERZ_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// DSN は gorm(postgres) 用の接続文字列
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
