// Package primary implements the paginated editorial catalog client.
package primary

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/infra/source"
)

// Endpoint is the API path for the catalog feed endpoint.
const Endpoint = "/api/feed"

// Client implements domain.PrimarySource.
type Client struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	logger *zap.Logger
}

// New creates a new primary catalog client.
func New(cfg source.ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		client: source.NewRestyClient(cfg),
		cb:     source.NewCircuitBreaker[*resty.Response]("primary", cfg.CB),
		logger: logger,
	}
}

// FetchPrimary retrieves the initial catalog, ad placeholders included.
func (c *Client) FetchPrimary(ctx context.Context, identity domain.Identity) ([]domain.ContentItem, error) {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		var result Response
		req := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			SetQueryParam("authenticated", fmt.Sprintf("%t", identity.Authenticated))
		if identity.UserID != "" {
			req.SetQueryParam("user_id", identity.UserID)
		}

		r, err := req.Get(Endpoint)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("primary source returned status %d", r.StatusCode())
		}

		return r, nil
	})

	if err != nil {
		c.logger.Warn("primary fetch failed",
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)

		return nil, &domain.SourceFetchError{Source: domain.SourcePrimary, Err: err}
	}

	result := resp.Result().(*Response)
	items := make([]domain.ContentItem, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToDomain())
	}

	c.logger.Info("primary fetch completed",
		zap.Int("count", len(items)),
	)

	return items, nil
}

// HealthCheck verifies the catalog is accessible.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/health")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}

	return nil
}
