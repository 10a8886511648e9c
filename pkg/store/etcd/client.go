package etcd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/store"
)

const (
	keysPrefix     = "v2/keys"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// RequestObserver is notified after every request with the operation name,
// an outcome label and the elapsed time.
type RequestObserver interface {
	ObserveStoreRequest(op, outcome string, d time.Duration)
}

// Client talks to the v2 keys API of an etcd cluster over plain HTTP.
// It implements store.KeyValueStore.
type Client struct {
	endpoint string
	username string
	password string
	http     *http.Client
	observer RequestObserver
	log      *logger.Logger
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	Endpoint string
	// Username and Password are sent as basic auth unless both are empty.
	Username string
	Password string
	Timeout  time.Duration

	HTTPClient *http.Client
	Observer   RequestObserver
	Logger     *logger.Logger
}

var _ store.KeyValueStore = (*Client)(nil)

// NewClient creates a Client for the given endpoint, e.g. "http://localhost:2379".
func NewClient(params NewClientParams) (*Client, error) {
	if params.Endpoint == "" {
		return nil, fmt.Errorf("etcd endpoint is empty")
	}
	if _, err := url.Parse(params.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid etcd endpoint %q: %w", params.Endpoint, err)
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: strings.TrimRight(params.Endpoint, "/"),
		username: params.Username,
		password: params.Password,
		http:     httpClient,
		observer: params.Observer,
		log:      params.Logger,
	}, nil
}

// KeyURL returns the v2 keys URL for key. Apart from its leading slash the
// key is escaped once and never cleaned, so etcd decodes the exact key.
func (c *Client) KeyURL(key string) (string, error) {
	escaped := (&url.URL{Path: strings.TrimLeft(key, "/")}).EscapedPath()
	return c.endpoint + "/" + keysPrefix + "/" + escaped, nil
}

// FetchTree reads everything below apiPath recursively and returns the raw body.
func (c *Client) FetchTree(ctx context.Context, apiPath string) ([]byte, error) {
	target, err := c.KeyURL(apiPath)
	if err != nil {
		return nil, &store.TransportError{Op: http.MethodGet, URL: apiPath, Err: err}
	}
	target += "?recursive=true"

	body, err := c.do(ctx, "fetch", http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Delete removes key. A missing key comes back as a 404 *store.HTTPStatusError,
// see store.IsNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	target, err := c.KeyURL(key)
	if err != nil {
		return &store.TransportError{Op: http.MethodDelete, URL: key, Err: err}
	}

	_, err = c.do(ctx, "delete", http.MethodDelete, target)
	return err
}

func (c *Client) do(ctx context.Context, op, method, target string) ([]byte, error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if c.observer != nil {
			c.observer.ObserveStoreRequest(op, outcome, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		outcome = "transport_error"
		return nil, &store.TransportError{Op: method, URL: target, Err: err}
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("[Etcd] Request", "method", method, "url", target)

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "transport_error"
		return nil, &store.TransportError{Op: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "transport_error"
		return nil, &store.TransportError{Op: method, URL: target, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		outcome = fmt.Sprintf("status_%d", resp.StatusCode)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &store.HTTPStatusError{
			Op:         method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}
