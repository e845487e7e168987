package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Nats    NatsConfig    `json:"nats"`
	Storage StorageConfig `json:"storage"`
	Auth    AuthConfig    `json:"auth"`
	Combat  CombatConfig  `json:"combat"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	el.Add(c.Gateway.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Storage.validate())
	el.Add(c.Auth.validate())
	el.Add(c.Combat.validate())

	return el.Err()
}

type GatewayConfig struct {
	Port uint16 `json:"port"`
}

func (c *GatewayConfig) validate() error {
	el := errors.NewErrorList()

	if c.Port == 0 {
		el.Add(fmt.Errorf("port must be set to a positive integer"))
	}

	return el.Err()
}
