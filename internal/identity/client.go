// Package identity asks the auth service whether a user id is real before a
// rating is accepted. Any failure, timeouts included, counts as a rejection.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/goforj/moviematch/internal/apperr"
	"github.com/goforj/moviematch/internal/logging"
	"github.com/goforj/moviematch/internal/metrics"
)

// DefaultTimeout bounds each call to the auth service.
const DefaultTimeout = 5 * time.Second

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the transport; its Timeout is replaced by Timeout.
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		httpClient = &c
	}
	httpClient.Timeout = timeout

	logger = logging.Component(logger, "identity")
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "identity-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejected user is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		cb:      cb,
		logger:  logger,
	}
}

var errRejected = errors.New("user rejected by identity service")

// ValidateUser confirms userID with GET {base}/api/users/{id}, forwarding the
// caller's bearer token. A nil error means the user exists.
func (c *Client) ValidateUser(ctx context.Context, userID int64, bearer string) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.fetch(ctx, userID, bearer)
	})
	if err == nil {
		metrics.IdentityChecks.WithLabelValues("accepted").Inc()
		return nil
	}

	result := "unavailable"
	if errors.Is(err, errRejected) {
		result = "rejected"
	}
	metrics.IdentityChecks.WithLabelValues(result).Inc()
	logging.Ctx(ctx, c.logger).Warn().Err(err).Int64("user_id", userID).Str("result", result).Msg("user validation failed")
	return apperr.Unauthorized("invalid user", err)
}

func (c *Client) fetch(ctx context.Context, userID int64, bearer string) error {
	url := c.baseURL + "/api/users/" + strconv.FormatInt(userID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("identity service returned %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", errRejected, resp.StatusCode)
	}
}
