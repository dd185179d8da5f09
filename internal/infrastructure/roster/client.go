// Package roster is the HTTP client of the external student/year-level
// system of record. Payloads are snake_case JSON.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	studentYearLevelPath = "/s/studentyearlevels/%d/"
	yearLevelPath        = "/d/year-level/%d/"
	yearLevelsPath       = "/d/year-levels/"
	schoolYearPath       = "/d/school-year/%d/"

	maxResponseBytes = 1 << 20
)

// Lookup outcomes reported to the observer
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
)

// Errors for configuration validation
var (
	ErrMissingBaseURL = errors.New("roster: missing base URL")
	ErrInvalidBaseURL = errors.New("roster: base URL must be an absolute http(s) URL")
)

// Config holds the roster client settings
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	ForwardAuth bool
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	return nil
}

// LookupObserver receives one call per roster request
type LookupObserver interface {
	ObserveRosterLookup(operation, outcome string, elapsed time.Duration)
}

// Client implements fee.RosterLookup over HTTP
type Client struct {
	baseURL     string
	httpClient  *http.Client
	forwardAuth bool
	observer    LookupObserver
	logger      *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver reports every lookup to o
func WithObserver(o LookupObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a roster client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		forwardAuth: cfg.ForwardAuth,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetStudentYearLevel fetches a student's enrolment
func (c *Client) GetStudentYearLevel(ctx context.Context, id int64) (*fee.StudentYearLevel, error) {
	var out fee.StudentYearLevel
	if err := c.get(ctx, "student_year_level", fmt.Sprintf(studentYearLevelPath, id), &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	return &out, nil
}

// GetYearLevelByID fetches one year level
func (c *Client) GetYearLevelByID(ctx context.Context, id int64) (*fee.YearLevel, error) {
	var out fee.YearLevel
	if err := c.get(ctx, "year_level", fmt.Sprintf(yearLevelPath, id), &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	return &out, nil
}

// ListYearLevels fetches every year level. Both a bare array and a
// paginated {"results": [...]} envelope are accepted.
func (c *Client) ListYearLevels(ctx context.Context) ([]fee.YearLevel, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "year_levels", yearLevelsPath, &raw); err != nil {
		return nil, err
	}

	var levels []fee.YearLevel
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []fee.YearLevel `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("%w: year_levels: decode: %v", fee.ErrRosterUnavailable, err)
		}
		levels = page.Results
	} else if err := json.Unmarshal(trimmed, &levels); err != nil {
		return nil, fmt.Errorf("%w: year_levels: decode: %v", fee.ErrRosterUnavailable, err)
	}
	if levels == nil {
		levels = []fee.YearLevel{}
	}
	return levels, nil
}

// GetSchoolYear fetches one school year
func (c *Client) GetSchoolYear(ctx context.Context, id int64) (*fee.SchoolYear, error) {
	var out fee.SchoolYear
	if err := c.get(ctx, "school_year", fmt.Sprintf(schoolYearPath, id), &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		out.ID = id
	}
	return &out, nil
}

// get performs a GET and decodes the JSON body into out. It returns
// fee.ErrRosterNotFound on 404 and wraps fee.ErrRosterUnavailable otherwise.
func (c *Client) get(ctx context.Context, op, path string, out any) (err error) {
	start := time.Now()
	defer func() { c.observe(op, err, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("roster: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.forwardAuth {
		if token := auth.BearerToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", fee.ErrRosterUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", fee.ErrRosterUnavailable, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fee.ErrRosterNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s: HTTP %d", fee.ErrRosterUnavailable, op, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", fee.ErrRosterUnavailable, op, err)
	}
	return nil
}

func (c *Client) observe(op string, err error, elapsed time.Duration) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, fee.ErrRosterNotFound):
		outcome = OutcomeNotFound
	default:
		outcome = OutcomeUnavailable
		c.logger.Warn("Roster lookup failed",
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	if c.observer != nil {
		c.observer.ObserveRosterLookup(op, outcome, elapsed)
	}
}

var _ fee.RosterLookup = (*Client)(nil)
