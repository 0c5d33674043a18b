package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Handshake HandshakeConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type JWTConfig struct {
	Secret string
}

type HandshakeConfig struct {
	// Timeout bounds a single upgrade attempt, covering credential
	// verification and header validation.
	Timeout time.Duration
}

type RedisConfig struct {
	// URL in redis://[:password@]host:port/db form. Empty disables the
	// presence mirror.
	URL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	// GroupID empty disables the notification event consumer.
	GroupID string
}

var (
	instance *Config
	once     sync.Once
)

// Load reads configuration from NOTIFY_* environment variables, falling
// back to defaults suitable for local development.
func Load() *Config {
	once.Do(func() {
		viper.SetDefault("NOTIFY_HOST", "")
		viper.SetDefault("NOTIFY_PORT", "8080")
		viper.SetDefault("NOTIFY_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("NOTIFY_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("NOTIFY_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("NOTIFY_ALLOWED_ORIGINS", "http://localhost:3000")
		viper.SetDefault("NOTIFY_JWT_SECRET", "secret")
		viper.SetDefault("NOTIFY_HANDSHAKE_TIMEOUT", 10*time.Second)
		viper.SetDefault("NOTIFY_REDIS_URL", "")
		viper.SetDefault("NOTIFY_KAFKA_BROKERS", "")
		viper.SetDefault("NOTIFY_KAFKA_TOPIC", "crm.notifications")
		viper.SetDefault("NOTIFY_KAFKA_GROUP_ID", "")
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Host:           viper.GetString("NOTIFY_HOST"),
				Port:           viper.GetString("NOTIFY_PORT"),
				ReadTimeout:    viper.GetDuration("NOTIFY_READ_TIMEOUT"),
				WriteTimeout:   viper.GetDuration("NOTIFY_WRITE_TIMEOUT"),
				IdleTimeout:    viper.GetDuration("NOTIFY_IDLE_TIMEOUT"),
				AllowedOrigins: splitList(viper.GetString("NOTIFY_ALLOWED_ORIGINS")),
			},
			JWT: JWTConfig{
				Secret: viper.GetString("NOTIFY_JWT_SECRET"),
			},
			Handshake: HandshakeConfig{
				Timeout: viper.GetDuration("NOTIFY_HANDSHAKE_TIMEOUT"),
			},
			Redis: RedisConfig{
				URL: viper.GetString("NOTIFY_REDIS_URL"),
			},
			Kafka: KafkaConfig{
				Brokers: splitList(viper.GetString("NOTIFY_KAFKA_BROKERS")),
				Topic:   viper.GetString("NOTIFY_KAFKA_TOPIC"),
				GroupID: viper.GetString("NOTIFY_KAFKA_GROUP_ID"),
			},
		}
	})

	return instance
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
