package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"GO_ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis (rate counters + reminder queue backing store)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// SMTP
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	// Push providers
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	VAPIDPublicKey          string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey         string `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubject            string `mapstructure:"VAPID_SUBJECT"`

	// Unread reminder delays: push after T1, email after a further T2
	ReminderPushDelay  time.Duration `mapstructure:"REMINDER_PUSH_DELAY"`
	ReminderEmailDelay time.Duration `mapstructure:"REMINDER_EMAIL_DELAY"`
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("GO_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("SMTP_PORT", 465)
	viper.SetDefault("VAPID_SUBJECT", "mailto:jale.official.contact@gmail.com")
	viper.SetDefault("REMINDER_PUSH_DELAY", 5*time.Minute)
	viper.SetDefault("REMINDER_EMAIL_DELAY", 10*time.Minute)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	return &cfg
}
