package config

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type GatewayConfig struct {
	Name   string `json:"-"`
	Type   string
	Config any
}

func (g *GatewayConfig) UnmarshalJSON(data []byte) error {
	if result := gjson.GetBytes(data, "Type"); !result.Exists() {
		return fmt.Errorf("failed to find gateway type information")
	} else {
		g.Type = result.String()
	}

	switch g.Type {
	case "it600":
		g.Config = &IT600Config{}
	default:
		return fmt.Errorf("unknown gateway configuration type: %s", g.Type)
	}

	if result := gjson.GetBytes(data, "Config"); result.Exists() {
		return json.Unmarshal([]byte(result.Raw), g.Config)
	} else {
		return fmt.Errorf("unable to find Config stanza: %s", g.Type)
	}
}

// IT600Config describes a single Salus IT600 universal gateway. EUID is the
// 16 hex character identity printed on the underside of the gateway, an
// all zero EUID is accepted by gateways with older firmware.
type IT600Config struct {
	Host string
	EUID string

	PollIntervalSeconds int
	PollTimeoutSeconds  int
}
