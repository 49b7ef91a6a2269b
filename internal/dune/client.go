// Copyright (c) 2025 Duners
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dune is a client for the Dune query execution API.
//
// A Client fetches the latest result of a saved query or triggers a new
// execution, decodes the execution envelope, and saves every completed
// envelope verbatim to the result cache under the caller's identity. Each
// call is exactly one HTTP round trip: the client never retries or polls, so
// callers that want to wait for a pending execution loop themselves.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"duners/cli/internal/cache"
	"duners/cli/internal/credential"
	"duners/cli/internal/errors"
	"duners/cli/internal/logging"

	"github.com/pterm/pterm"
)

// DefaultBaseURL is the public API origin.
const DefaultBaseURL = "https://api.dune.com"

// HeaderAPIKey carries the credential on every request.
const HeaderAPIKey = "X-Dune-API-Key"

const (
	resultsPath = "/api/v1/query/%s/results"
	executePath = "/api/v1/query/%s/execute"
)

// maxErrorBody bounds how much of a non-2xx body ends up in an error.
const maxErrorBody = 512

var queryIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Saver persists raw envelopes; *cache.Store implements it.
type Saver interface {
	Save(identity, key string, data []byte) error
}

// Client talks to the API on behalf of one credential. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	apiKey    credential.Credential
	identity  string
	baseURL   string
	userAgent string
	http      *http.Client
	cache     Saver
	log       *pterm.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API origin (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCache replaces the default ~/.duners/cache store.
func WithCache(s Saver) Option {
	return func(c *Client) { c.cache = s }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *pterm.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a client for cred. The cache identity is derived once here.
func New(cred credential.Credential, opts ...Option) (*Client, error) {
	if cred == "" {
		return nil, errors.New(errors.MissingCredential, "empty API key")
	}
	c := &Client{
		apiKey:    cred,
		identity:  credential.Identity(cred),
		baseURL:   DefaultBaseURL,
		userAgent: "duners-cli",
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		root, err := cache.DefaultRoot()
		if err != nil {
			return nil, errors.Wrap(errors.StorageError, "resolve cache directory", err)
		}
		c.cache = cache.NewStore(root)
	}
	return c, nil
}

// NewFromEnvironment resolves the credential with credential.Resolve and
// builds a client from it.
func NewFromEnvironment(ropts credential.Options, opts ...Option) (*Client, error) {
	res, err := credential.Resolve(ropts)
	if err != nil {
		return nil, err
	}
	return New(res.Credential, opts...)
}

// Identity returns the cache namespace of this client's credential.
func (c *Client) Identity() string { return c.identity }

// Execution is a decoded envelope together with the exact bytes received.
type Execution struct {
	Envelope *Envelope
	raw      []byte
}

// Raw returns the response body as received.
func (e *Execution) Raw() []byte { return e.raw }

// Rows returns the result rows, or nil when there is no result.
func (e *Execution) Rows() []Row {
	if e == nil || e.Envelope == nil || e.Envelope.Result == nil {
		return nil
	}
	return e.Envelope.Result.Rows
}

// FetchLatestResult returns the rows of the latest completed execution of queryID.
func (c *Client) FetchLatestResult(ctx context.Context, queryID string) ([]Row, error) {
	exec, err := c.LatestResult(ctx, queryID)
	if err != nil {
		return nil, err
	}
	return exec.Rows(), nil
}

// LatestResult is FetchLatestResult returning the whole execution.
func (c *Client) LatestResult(ctx context.Context, queryID string) (*Execution, error) {
	if err := validateQueryID(queryID); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+fmt.Sprintf(resultsPath, queryID), nil)
	if err != nil {
		return nil, errors.Wrap(errors.TransportError, "build request", err)
	}
	return c.do(req, queryID)
}

// Execute triggers a new execution of queryID. Unless the service answers
// with a completed envelope straight away, it fails with ExecutionNotReady.
func (c *Client) Execute(ctx context.Context, queryID string) (*Execution, error) {
	if err := validateQueryID(queryID); err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]string{
		"query_id": queryID,
		"api_key":  string(c.apiKey),
	})
	if err != nil {
		return nil, errors.Wrap(errors.TransportError, "encode execute request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fmt.Sprintf(executePath, queryID), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.TransportError, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, queryID)
}

// do performs the round trip and the shared decode/state/persist pipeline.
func (c *Client) do(req *http.Request, queryID string) (*Execution, error) {
	c.setStandardHeaders(req)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.TransportError, fmt.Sprintf("%s %s", req.Method, req.URL.Path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.TransportError, "read response", err)
	}
	c.log.Debug("dune response", c.log.Args(
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(req, resp.StatusCode, body)
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !env.State.IsCompleted() {
		return nil, &NotReadyError{QueryID: queryID, ExecutionID: env.ExecutionID, State: env.State}
	}
	if env.Result == nil {
		return nil, errors.New(errors.MalformedSuccess, fmt.Sprintf("query %s execution %s completed without a result", queryID, env.ExecutionID))
	}

	if err := c.cache.Save(c.identity, queryID, body); err != nil {
		return nil, err
	}
	c.log.Debug("cached result", c.log.Args("query_id", queryID, "rows", len(env.Result.Rows)))
	return &Execution{Envelope: env, raw: body}, nil
}

// setStandardHeaders applies the headers every request carries.
func (c *Client) setStandardHeaders(req *http.Request) {
	req.Header.Set(HeaderAPIKey, string(c.apiKey))
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// statusError turns a non-2xx response into a TransportError, keeping the
// service's own error message when it sent one.
func statusError(req *http.Request, status int, body []byte) error {
	msg := http.StatusText(status)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error != "" {
		msg = ae.Error
	} else if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		if len(trimmed) > maxErrorBody {
			trimmed = trimmed[:maxErrorBody] + "..."
		}
		msg = trimmed
	}
	return errors.Wrap(errors.TransportError,
		fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		&StatusError{Code: status, Message: logging.Mask(msg)})
}

// StatusError is the cause of a TransportError for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// NotReadyError reports an execution that has not completed. It matches
// errors.ExecutionNotReady.
type NotReadyError struct {
	QueryID     string
	ExecutionID string
	State       State
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: query %s execution %s is %s", errors.ExecutionNotReady, e.QueryID, e.ExecutionID, e.State.Short())
}

// ErrorKind classifies the error for errors.KindOf.
func (e *NotReadyError) ErrorKind() errors.Kind { return errors.ExecutionNotReady }

func (e *NotReadyError) Is(target error) bool {
	t, ok := target.(*errors.E)
	return ok && t.Kind == errors.ExecutionNotReady
}

// validateQueryID rejects ids that are empty or not safe as a path segment
// and file name.
func validateQueryID(id string) error {
	if !queryIDPattern.MatchString(id) {
		return errors.New(errors.InvalidQueryID, fmt.Sprintf("query id %q must match %s", id, queryIDPattern.String()))
	}
	return nil
}
