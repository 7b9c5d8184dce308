package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	SendinblueAPIKey    string // SENDINBLUE_API_KEY for account emails (Brevo); empty disables sending
	MailFrom            string

	LogLevel  string
	LogPretty bool
	LogFile   string // empty = stdout only

	FreeShippingThreshold float64 // subtotal strictly above this ships free
	ShippingFee           float64
	NegotiationTTL        time.Duration
	OTPTTL                time.Duration
	IdempotencyTTL        time.Duration
	OrderNodeID           int64 // snowflake node for order numbers
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("FREE_SHIPPING_THRESHOLD", 500)
	viper.SetDefault("SHIPPING_FEE", 50)
	viper.SetDefault("NEGOTIATION_TTL_HOURS", 48)
	viper.SetDefault("OTP_TTL_SECONDS", 300)
	viper.SetDefault("IDEMPOTENCY_TTL_SECONDS", 86400)
	viper.SetDefault("ORDER_NODE_ID", 1)

	return &Config{
		Env:                   viper.GetString("APP_ENV"),
		Port:                  viper.GetString("PORT"),
		SessionSecret:         viper.GetString("SESSION_SECRET"),
		DatabaseURL:           viper.GetString("DATABASE_URL"),
		RedisURL:              viper.GetString("REDIS_URL"),
		FrontendURLEndsWith:   viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:           viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:     strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:        viper.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:      viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:              viper.GetString("MAIL_FROM"),
		LogLevel:              viper.GetString("LOG_LEVEL"),
		LogPretty:             viper.GetBool("LOG_PRETTY"),
		LogFile:               viper.GetString("LOG_FILE"),
		FreeShippingThreshold: viper.GetFloat64("FREE_SHIPPING_THRESHOLD"),
		ShippingFee:           viper.GetFloat64("SHIPPING_FEE"),
		NegotiationTTL:        time.Duration(viper.GetInt("NEGOTIATION_TTL_HOURS")) * time.Hour,
		OTPTTL:                time.Duration(viper.GetInt("OTP_TTL_SECONDS")) * time.Second,
		IdempotencyTTL:        time.Duration(viper.GetInt("IDEMPOTENCY_TTL_SECONDS")) * time.Second,
		OrderNodeID:           viper.GetInt64("ORDER_NODE_ID"),
	}, nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
