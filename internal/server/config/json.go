package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/docvault/internal/flagx"
	"github.com/dmitrijs2005/docvault/internal/timex"
)

// JsonConfig is the JSON-file DTO for Config. Duration fields use
// timex.Duration so both "15m" and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	RedisAddr             string         `json:"redis_addr"`
	EventChannel          string         `json:"event_channel"`
	AttestationSecret     string         `json:"attestation_secret"`
	RegistryIdentity      string         `json:"registry_identity"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, when present. The file overrides defaults; flags applied
// afterwards override the file. An unreadable or invalid file panics, since
// the operator explicitly asked for it.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	config.RedisAddr = c.RedisAddr
	config.EventChannel = c.EventChannel
	config.AttestationSecret = c.AttestationSecret
	config.RegistryIdentity = c.RegistryIdentity
}
