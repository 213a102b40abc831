// Package adprovider implements the HTTP ad instance provider.
package adprovider

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/infra/source"
)

// API paths for the ad server.
const (
	ReserveEndpoint = "/api/ads/reserve"
	ReleaseEndpoint = "/api/ads/release"
)

// reserveRequest is the JSON body for a reservation.
type reserveRequest struct {
	SlotPosition int `json:"slot_position"`
}

// reserveResponse carries the instance handle issued by the ad server.
type reserveResponse struct {
	Handle string `json:"handle"`
}

// releaseRequest is the JSON body for a release.
type releaseRequest struct {
	Handle string `json:"handle"`
}

// Client implements domain.AdProvider against an ad server. Reservations
// carry non-trivial upstream cost, which is exactly why the slot manager
// bounds live instances to the viewport window.
type Client struct {
	client *resty.Client
	cb     *gobreaker.CircuitBreaker[*resty.Response]
	logger *zap.Logger
}

// New creates a new ad provider client.
func New(cfg source.ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		client: source.NewRestyClient(cfg),
		cb:     source.NewCircuitBreaker[*resty.Response]("adprovider", cfg.CB),
		logger: logger,
	}
}

// LoadAdInstance reserves an ad instance for the given feed position.
func (c *Client) LoadAdInstance(ctx context.Context, position int) (domain.AdHandle, error) {
	resp, err := c.cb.Execute(func() (*resty.Response, error) {
		var result reserveResponse
		r, err := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			SetBody(reserveRequest{SlotPosition: position}).
			Post(ReserveEndpoint)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("ad server returned status %d", r.StatusCode())
		}

		return r, nil
	})

	if err != nil {
		return "", &domain.AdLoadError{Position: position, Err: err}
	}

	handle := resp.Result().(*reserveResponse).Handle
	if handle == "" {
		return "", &domain.AdLoadError{Position: position, Err: fmt.Errorf("ad server issued empty handle")}
	}

	c.logger.Debug("ad instance reserved",
		zap.Int("position", position),
		zap.String("handle", handle),
	)

	return domain.AdHandle(handle), nil
}

// ReleaseAdInstance releases a reserved instance. The empty handle is a
// no-op, which makes the call safe when an unload races a load that has not
// resolved yet. Release failures are logged only: the upstream reservation
// expires on its own.
func (c *Client) ReleaseAdInstance(ctx context.Context, handle domain.AdHandle) {
	if handle == "" {
		return
	}

	r, err := c.client.R().
		SetContext(ctx).
		SetBody(releaseRequest{Handle: string(handle)}).
		Post(ReleaseEndpoint)
	if err != nil {
		c.logger.Warn("ad instance release failed",
			zap.String("handle", string(handle)),
			zap.Error(err),
		)

		return
	}
	if r.IsError() {
		c.logger.Warn("ad instance release rejected",
			zap.String("handle", string(handle)),
			zap.Int("status", r.StatusCode()),
		)

		return
	}

	c.logger.Debug("ad instance released",
		zap.String("handle", string(handle)),
	)
}
