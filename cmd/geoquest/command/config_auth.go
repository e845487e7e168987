package command

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/geoquest/geoquest/internal/auth"
)

type AuthConfig struct {
	TokenSecret string `json:"token_secret"`
}

func (c *AuthConfig) validate() error {
	el := errors.NewErrorList()

	if c.TokenSecret == "" {
		el.Add(fmt.Errorf("token_secret is required"))
	}

	return el.Err()
}

func (c *AuthConfig) buildResolver() *auth.Resolver {
	return auth.NewResolver(auth.NewHMACVerifier([]byte(c.TokenSecret)))
}
