// Package peer implements outbound calls to another node's internal HTTP
// endpoint: forwarded GET/PUT/DELETE and heartbeats. It is the sole place
// in the system that dials another node.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/distcache/ringcache/internal/entry"
	"github.com/distcache/ringcache/pkg/hashring"
)

// Client is a single shared resource across all outbound peer calls,
// configured with distinct timeouts for data operations and heartbeats
// (spec.md §4.4).
type Client struct {
	http             *http.Client
	dataTimeout      time.Duration
	heartbeatTimeout time.Duration
	logger           *log.Logger
}

type putRequest struct {
	Value     entry.Value `json:"value"`
	TTLMillis int64       `json:"ttlMillis"`
}

// HeartbeatRequest is the wire shape POSTed to a peer's
// /internal/cache/heartbeat endpoint.
type HeartbeatRequest struct {
	NodeID    string `json:"nodeId"`
	NodeHost  string `json:"nodeHost"`
	NodePort  int    `json:"nodePort"`
	Timestamp int64  `json:"timestamp"`
}

// New creates a Client with connection reuse via a shared *http.Transport.
func New(dataTimeout, heartbeatTimeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http:             &http.Client{Transport: transport},
		dataTimeout:      dataTimeout,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
	}
}

func internalCacheURL(n hashring.Node, key string) string {
	return fmt.Sprintf("http://%s/internal/cache/%s", n.Address(), key)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, url string, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UnreachableError{Addr: url, Err: err}
	}
	// The deferred cancel also ends reading the body, so read it in full
	// before returning.
	b, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &UnreachableError{Addr: url, Err: err}
	}
	resp.Body = io.NopCloser(bytes.NewReader(b))
	return resp, nil
}

// ForwardGet forwards a GET to target's internal endpoint. A 200 yields
// the value; a 404 yields (entry.Value{}, false, nil); any other status is
// an *ErrorResponse.
func (c *Client) ForwardGet(ctx context.Context, target hashring.Node, key string) (entry.Value, bool, error) {
	resp, err := c.do(ctx, c.dataTimeout, http.MethodGet, internalCacheURL(target, key), nil)
	if err != nil {
		return entry.Value{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var v entry.Value
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return entry.Value{}, false, err
		}
		return v, true, nil
	case http.StatusNotFound:
		return entry.Value{}, false, nil
	default:
		return entry.Value{}, false, newErrorResponse(resp)
	}
}

// ForwardPut forwards a PUT. A 200 is success; anything else is an
// *ErrorResponse carrying the remote body.
func (c *Client) ForwardPut(ctx context.Context, target hashring.Node, key string, value entry.Value, ttl time.Duration) error {
	body, err := json.Marshal(putRequest{Value: value, TTLMillis: ttl.Milliseconds()})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, c.dataTimeout, http.MethodPost, internalCacheURL(target, key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newErrorResponse(resp)
	}
	return nil
}

// ForwardDelete forwards a DELETE. A 204 is success.
func (c *Client) ForwardDelete(ctx context.Context, target hashring.Node, key string) error {
	resp, err := c.do(ctx, c.dataTimeout, http.MethodDelete, internalCacheURL(target, key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return newErrorResponse(resp)
	}
	return nil
}

// SendHeartbeat POSTs a heartbeat to target. Per spec.md §4.4, any failure
// (transport error or non-success status) is absorbed: logged and never
// propagated to the caller, since the method returns nothing.
func (c *Client) SendHeartbeat(ctx context.Context, target hashring.Node, hb HeartbeatRequest) {
	body, err := json.Marshal(hb)
	if err != nil {
		c.logger.Printf("peer: failed to encode heartbeat for %s: %v", target.Address(), err)
		return
	}

	url := fmt.Sprintf("http://%s/internal/cache/heartbeat", target.Address())
	resp, err := c.do(ctx, c.heartbeatTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Printf("peer: heartbeat to %s failed: %v", target.Address(), err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Printf("peer: heartbeat to %s returned status %d", target.Address(), resp.StatusCode)
	}
}

func newErrorResponse(resp *http.Response) *ErrorResponse {
	b, _ := io.ReadAll(resp.Body)
	return &ErrorResponse{StatusCode: resp.StatusCode, Body: string(b)}
}
