package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

func loadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

func ConfigOr(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
	Folder       string
}

func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type AppConfig struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	BaseURL     string
	TimeZone    string

	SettingsEncryptionKey string
	StripeWebhookSecret   string
	Currency              string

	ResendAPIKey string
	EmailSender  string

	RabbitMQURL string

	Cloudinary CloudinaryConfig
}

func Load() AppConfig {
	return AppConfig{
		Port:        ConfigOr("PORT", "8080"),
		DatabaseURL: Config("DATABASE_URL"),
		JWTSecret:   Config("JWT_SECRET"),
		BaseURL:     ConfigOr("NEXT_PUBLIC_BASE_URL", "http://localhost:3000"),
		TimeZone:    ConfigOr("TIMEZONE", "Europe/Zurich"),

		SettingsEncryptionKey: Config("SETTINGS_ENCRYPTION_KEY"),
		StripeWebhookSecret:   Config("STRIPE_WEBHOOK_SECRET"),
		Currency:              ConfigOr("CURRENCY", "chf"),

		ResendAPIKey: Config("RESEND_API_KEY"),
		EmailSender:  ConfigOr("EMAIL_SENDER", "Dance Hub <bookings@dancehub.ch>"),

		RabbitMQURL: Config("RABBITMQ_URL"),

		Cloudinary: CloudinaryConfig{
			CloudName:    Config("NEXT_PUBLIC_CLOUDINARY_CLOUD_NAME"),
			UploadPreset: Config("CLOUDINARY_UPLOAD_PRESET"),
			APIKey:       Config("CLOUDINARY_API_KEY"),
			APISecret:    Config("CLOUDINARY_API_SECRET"),
			Folder:       ConfigOr("CLOUDINARY_FOLDER", "dance_hub"),
		},
	}
}
