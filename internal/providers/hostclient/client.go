package hostclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hosting api: %d %s", e.Status, e.Message)
}

// Unwrap maps 404 onto types.ErrNotFound and 400 onto a validation error.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusBadRequest:
		return &types.ValidationError{Reason: e.Message}
	}
	return nil
}

// Client calls the hosting REST API.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// New creates a Client for cfg.BaseURL.
func New(cfg config.ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug("retrying hosting request",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt))
		}
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "penctl/"+config.Version).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	breaker := resilience.New("hosting-api", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status >= 500
			}
			return true
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{resty: restyClient, breaker: breaker, logger: logger}
}

// BaseURL returns the server origin.
func (c *Client) BaseURL() string {
	return c.resty.BaseURL
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Create publishes a new project.
func (c *Client) Create(ctx context.Context, req types.CreateRequest) (*types.CreateResponse, error) {
	var out types.CreateResponse
	_, err := c.do(ctx, http.MethodPost, "/api/create", func(r *resty.Request) {
		r.SetBody(req).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Metadata fetches the public description of a project.
func (c *Client) Metadata(ctx context.Context, projectID string) (*types.HostedMetadata, error) {
	var out types.ProjectResponse
	_, err := c.do(ctx, http.MethodGet, "/api/project/{id}", func(r *resty.Request) {
		r.SetPathParam("id", projectID).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	if out.Project == nil {
		return nil, fmt.Errorf("project %s: empty response", projectID)
	}
	return out.Project, nil
}

// Update changes the non-nil fields of a project.
func (c *Client) Update(ctx context.Context, projectID string, req types.UpdateRequest) error {
	_, err := c.do(ctx, http.MethodPut, "/api/project/{id}", func(r *resty.Request) {
		r.SetPathParam("id", projectID).SetBody(req)
	})
	return err
}

// Delete removes a project.
func (c *Client) Delete(ctx context.Context, projectID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/project/{id}", func(r *resty.Request) {
		r.SetPathParam("id", projectID)
	})
	return err
}

// Search lists recent projects matching query and tag. Empty values match all.
func (c *Client) Search(ctx context.Context, query, tag string) ([]types.HostedListing, error) {
	var out types.SearchResponse
	_, err := c.do(ctx, http.MethodGet, "/api/search", func(r *resty.Request) {
		if query != "" {
			r.SetQueryParam("query", query)
		}
		if tag != "" {
			r.SetQueryParam("tag", tag)
		}
		r.SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// Stats fetches server totals.
func (c *Client) Stats(ctx context.Context) (*types.HostedStats, error) {
	var out types.StatsResponse
	_, err := c.do(ctx, http.MethodGet, "/api/stats", func(r *resty.Request) {
		r.SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	if out.Stats == nil {
		return nil, errors.New("stats: empty response")
	}
	return out.Stats, nil
}

// Export downloads the ZIP archive of a project into w.
func (c *Client) Export(ctx context.Context, projectID string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/export/{id}", func(r *resty.Request) {
		r.SetPathParam("id", projectID).SetHeader("Accept", "application/zip")
	})
	if err != nil {
		return err
	}
	_, err = w.Write(resp.Body())
	return err
}

func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) (*resty.Response, error) {
	return resilience.Execute(ctx, c.breaker, func(ctx context.Context) (*resty.Response, error) {
		req := c.resty.R().SetContext(ctx).SetError(&types.ErrorResponse{})
		tracing.InjectHeader(ctx, req.Header)
		prepare(req)

		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.IsError() {
			return nil, apiError(resp)
		}
		return resp, nil
	})
}

func apiError(resp *resty.Response) error {
	msg := ""
	if body, ok := resp.Error().(*types.ErrorResponse); ok && body != nil {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
