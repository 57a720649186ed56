package demas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
	"github.com/saudeaberta/medstock-api/pkg/retry"
)

// StockPath is the open-data endpoint publishing daily medicine stock positions
const StockPath = "/daf/estoque-medicamentos-bnafar-horus"

// Config configures the DEMAS client
type Config struct {
	BaseURL           string
	RegionCode        string
	MunicipalityCode  string
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
}

// StockQuery selects one page of one day's stock
type StockQuery struct {
	Date   string
	Limit  int
	Offset int
}

// Client reads the medicine stock endpoint of the DEMAS open-data API
type Client struct {
	baseURL          string
	regionCode       string
	municipalityCode string
	httpClient       *http.Client
	limiter          *rate.Limiter
	retryConfig      retry.Config
}

// NewClient creates a client. A non-positive RequestsPerSecond disables pacing.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	retryConfig := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		retryConfig.MaxAttempts = cfg.MaxAttempts
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		regionCode:       cfg.RegionCode,
		municipalityCode: cfg.MunicipalityCode,
		httpClient:       &http.Client{Timeout: timeout},
		limiter:          limiter,
		retryConfig:      retryConfig,
	}
}

// WithRetryConfig overrides the retry policy
func (c *Client) WithRetryConfig(cfg retry.Config) *Client {
	c.retryConfig = cfg
	return c
}

// FetchStock returns one page of stock items. Transient failures are retried; 4xx
// responses other than 429 fail immediately.
func (c *Client) FetchStock(ctx context.Context, q StockQuery) (*StockResponse, error) {
	endpoint, err := c.buildURL(q)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	var out *StockResponse
	err = retry.DoWithLog(ctx, c.retryConfig, "DEMAS", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.doGet(ctx, endpoint)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}, logger)
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("fetch stock for %s at offset %d", q.Date, q.Offset), err)
	}
	return out, nil
}

func (c *Client) buildURL(q StockQuery) (string, error) {
	parsed, err := url.Parse(c.baseURL + StockPath)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	if c.regionCode != "" {
		query.Set("codigo_uf", c.regionCode)
	}
	if c.municipalityCode != "" {
		query.Set("codigo_municipio", c.municipalityCode)
	}
	query.Set("data_posicao_estoque", q.Date)
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) doGet(ctx context.Context, endpoint string) (*StockResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("demas api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	out := &StockResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode demas response: %w", err)
	}
	return out, nil
}
