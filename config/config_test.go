package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  tracking_updated_topic_name: "waybill.tracking.updated"
redis:
  host: "localhost"
  port: 6379
waybox:
  http_addr: ":8080"
  kafka_consumer_group: "waybill-api"
  ref_cache_ttl_seconds: 600
  carrier:
    mode: "novaposhta"
    base_url: "https://api.carrier.example"
    api_key: "KEY"
    print_base_url: "https://my.carrier.example/orders"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "waybill.tracking.updated", cfg.Kafka.TrackingUpdatedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.WayBox.HTTPAddr)
	require.Equal(t, "novaposhta", cfg.WayBox.Carrier.Mode)
	require.Equal(t, "KEY", cfg.WayBox.Carrier.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/cfg.yaml")
	require.Error(t, err)
}
