package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata. The API key is
// optional so webhook intake can run without outbound access; calls that need
// it fail with a dependency error instead.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	var api *stripe.Client
	if apiKey != "" {
		if err := validateAPIKey(env, apiKey); err != nil {
			return nil, err
		}
		api = stripe.NewClient(apiKey)
		stripe.Key = apiKey
	}

	signingSecret := strings.TrimSpace(cfg.Secret)

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"stripe_env":     env,
			"api_key":        apiKey != "",
			"webhook_secret": signingSecret != "",
		})
		logg.Info(logCtx, "stripe client initialized")
		if signingSecret == "" && env == testEnv {
			logg.Warn(logCtx, "stripe webhook secret empty; test-mode payloads will not be verified")
		}
	}

	return &Client{
		api:           api,
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Mode maps the environment onto the provider mode recorded with events.
func (c *Client) Mode() enums.ProviderMode {
	if c.IsLive() {
		return enums.ProviderModeLive
	}
	return enums.ProviderModeTest
}

func (c *Client) IsLive() bool {
	return c != nil && c.environment == liveEnv
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// HasAPIKey reports whether outbound API calls are possible.
func (c *Client) HasAPIKey() bool {
	return c != nil && c.api != nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
