// Package recommended implements the recommendation service client.
package recommended

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/infra/source"
)

// Endpoint is the API path for ranked recommendations.
const Endpoint = "/api/recommendations"

// Client implements domain.RecommendationSource.
type Client struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	logger *zap.Logger
}

// New creates a new recommendation service client.
func New(cfg source.ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		client: source.NewRestyClient(cfg),
		cb:     source.NewCircuitBreaker[*resty.Response]("recommended", cfg.CB),
		logger: logger,
	}
}

// FetchRecommended requests up to count items, excluding the given composite
// ids. Exclusion is honored best-effort upstream; the response is returned
// as-is without re-filtering.
func (c *Client) FetchRecommended(ctx context.Context, count int, excludeIDs []string, identity domain.Identity) ([]domain.ContentItem, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		var result Response
		r, err := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			SetBody(Request{
				Count:      count,
				ExcludeIDs: excludeIDs,
				UserID:     identity.UserID,
				Authed:     identity.Authenticated,
			}).
			Post(Endpoint)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("recommendation source returned status %d", r.StatusCode())
		}

		return r, nil
	})

	if err != nil {
		c.logger.Warn("recommended fetch failed",
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)

		return nil, &domain.SourceFetchError{Source: domain.SourceRecommended, Err: err}
	}

	result := resp.Result().(*Response)
	items := make([]domain.ContentItem, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToDomain())
	}

	c.logger.Debug("recommended fetch completed",
		zap.Int("requested", count),
		zap.Int("count", len(items)),
		zap.Int("excluded", len(excludeIDs)),
	)

	return items, nil
}

// HealthCheck verifies the recommendation service is accessible.
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
