package auth

import "fmt"

// Mode selects which credentials the tool surface accepts.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeJWT    Mode = "jwt"
	ModeAPIKey Mode = "api_key"
	ModeAny    Mode = "any"
)

// Config is the server.auth configuration section.
type Config struct {
	// Mode is one of none, jwt, api_key or any.
	// Default: none
	Mode   Mode         `yaml:"mode"`
	JWT    JWTConfig    `yaml:"jwt"`
	APIKey APIKeyConfig `yaml:"api_key"`
}

// Validate checks that the selected mode has what it needs.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeNone:
		return nil
	case ModeJWT:
		return c.validateJWT()
	case ModeAPIKey:
		return c.validateAPIKey()
	case ModeAny:
		if err := c.validateJWT(); err != nil {
			return err
		}
		return c.validateAPIKey()
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
}

func (c *Config) validateJWT() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("%w: jwt.secret is required for mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func (c *Config) validateAPIKey() error {
	if len(c.APIKey.Keys) == 0 {
		return fmt.Errorf("%w: api_key.keys is empty for mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// New builds the authenticator for cfg. It returns nil, nil for ModeNone.
func New(cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chain Chain
	if cfg.Mode == ModeJWT || cfg.Mode == ModeAny {
		a, err := NewJWTAuthenticator(cfg.JWT)
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}
	if cfg.Mode == ModeAPIKey || cfg.Mode == ModeAny {
		a, err := NewAPIKeyAuthenticator(cfg.APIKey, nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}

	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}
