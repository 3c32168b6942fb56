// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cakeshop-notifier/internal/common/config"
	"cakeshop-notifier/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client that feeds order events to the
// notification workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for the initial connection.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 5,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// ConfigFrom derives a client configuration from the application config.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.RequestTimeout),
		RetryConfig:            DefaultRetryConfig,
	}
}

// Connect creates the Zeebe client and waits for a topology response,
// retrying transient failures with exponential backoff.
func Connect(ctx context.Context, cfg *ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.RetryConfig.MaxRetries; attempt++ {
		c, err := dial(ctx, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err

		if !isRetryableZeebeError(err) || attempt == cfg.RetryConfig.MaxRetries {
			break
		}

		delay := cfg.RetryConfig.BaseDelay * time.Duration(1<<attempt)
		if delay > cfg.RetryConfig.MaxDelay {
			delay = cfg.RetryConfig.MaxDelay
		}
		log.Warn("zeebe connection failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     attempt + 1,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("zeebe connect cancelled after %d attempts: %w", attempt+1, ctx.Err())
		}
	}
	return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, lastErr)
}

func dial(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, err
	}
	return &Client{client: zeebeClient, config: cfg}, nil
}

// GetClient returns the raw Zeebe client for job polling.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
