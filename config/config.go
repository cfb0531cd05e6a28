package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration (trip catalog cache).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`

	// WhatsApp Cloud API.
	WhatsAppToken      string `mapstructure:"WHATSAPP_API_TOKEN"`
	WhatsAppPhoneID    string `mapstructure:"WHATSAPP_BUSINESS_PHONE"`
	WhatsAppAPIVersion string `mapstructure:"WHATSAPP_API_VERSION"`
	WebhookVerifyToken string `mapstructure:"WEBHOOK_VERIFY_TOKEN"`

	// Gemini assistant.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`

	// Google Sheets backing store.
	SpreadsheetID         string `mapstructure:"SPREADSHEET_ID"`
	GoogleCredentialsFile string `mapstructure:"GOOGLE_CREDENTIALS_FILE"`

	// Dispatch tuning. MatchRadiusKm widens or narrows the trip search circle
	// around the driver's reported position.
	MatchRadiusKm    float64 `mapstructure:"MATCH_RADIUS_KM"`
	DialogTimeoutSec int     `mapstructure:"DIALOG_TIMEOUT_SEC"`
	OfferTimeoutSec  int     `mapstructure:"OFFER_TIMEOUT_SEC"`

	// Dispatcher contact handed to drivers after acceptance.
	SupportPhone string `mapstructure:"SUPPORT_PHONE"`
	SupportEmail string `mapstructure:"SUPPORT_EMAIL"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("WHATSAPP_API_VERSION", "v21.0")
	viper.SetDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	viper.SetDefault("MATCH_RADIUS_KM", 50)
	viper.SetDefault("DIALOG_TIMEOUT_SEC", 600)
	viper.SetDefault("OFFER_TIMEOUT_SEC", 600)
	viper.SetDefault("SUPPORT_PHONE", "+573135815118")
	viper.SetDefault("SUPPORT_EMAIL", "soporte@cargalibre.com.co")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
