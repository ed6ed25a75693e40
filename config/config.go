package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	WayBox   WayBoxConfig   `yaml:"waybox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	TrackingUpdatedTopicName string `yaml:"tracking_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WayBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	RefCacheTTLSeconds int    `yaml:"ref_cache_ttl_seconds"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int    `yaml:"worker_batch_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int    `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`

	// Планировщик опроса (опционально; по умолчанию активные коды 30..120 мин,
	// неизвестные 90 мин, лестница пауз при сбоях 5/15/30/60 мин).
	WorkerNextCheckActiveMinSeconds int `yaml:"worker_next_check_active_min_seconds"`
	WorkerNextCheckActiveMaxSeconds int `yaml:"worker_next_check_active_max_seconds"`
	WorkerNextCheckUnknownSeconds   int `yaml:"worker_next_check_unknown_seconds"`
	WorkerBackoff1Seconds           int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds           int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds           int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds           int `yaml:"worker_backoff_4_seconds"`

	Carrier CarrierConfig `yaml:"carrier"`
}

type CarrierConfig struct {
	// Mode: "novaposhta" — реальное API документов, "fake" — встроенная заглушка.
	Mode         string `yaml:"mode"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	PrintBaseURL string `yaml:"print_base_url"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
