package config

import (
	"github.com/sandrolain/h02-bridge/src/server"
	"github.com/sandrolain/h02-bridge/src/sinks/httpsink"
	"github.com/sandrolain/h02-bridge/src/sinks/mqttsink"
	"github.com/sandrolain/h02-bridge/src/sinks/natssink"
)

type EnvConfig struct {
	ConfigFilePath string `env:"HB_CONFIG_FILE_PATH" envDefault:"/etc/h02-bridge/config.yaml" validate:"omitempty,filepath"`
	// Optional: raw configuration content (YAML or JSON). If set, it takes precedence over ConfigFilePath.
	ConfigContent string `env:"HB_CONFIG_CONTENT" validate:"omitempty"`
	// Optional: explicit config format when using ConfigContent. One of: yaml, yml, json.
	ConfigFormat string `env:"HB_CONFIG_FORMAT" validate:"omitempty,oneof=yaml yml json"`
}

type Config struct {
	Server server.Config `yaml:"server" json:"server"`
	Sink   SinkConfig    `yaml:"sink" json:"sink" validate:"required"`
}

// SinkConfig selects the downstream transport. Exactly one of the
// per-type blocks must be present, matching Type.
type SinkConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=mqtt nats http"`
	// TID is the OwnTracks tracker tag; when empty the device
	// identifier from each report is used.
	TID  string           `yaml:"tid" json:"tid"`
	MQTT *mqttsink.Config `yaml:"mqtt" json:"mqtt" validate:"omitempty"`
	NATS *natssink.Config `yaml:"nats" json:"nats" validate:"omitempty"`
	HTTP *httpsink.Config `yaml:"http" json:"http" validate:"omitempty"`
}
