package http

import (
	"fmt"
	"net/http"
	"time"

	"JobPilot/backend/go/pkg/circuitbreaker"
)

// Client wraps the standard http.Client with optional circuit breaking,
// so repeated upstream failures stop burning connections on a dead peer.
type Client struct {
	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker
}

// NewClient builds a Client around the given breaker. A nil breaker means
// requests pass straight through a plain http.Client with a 30 second
// timeout.
func NewClient(breaker circuitbreaker.CircuitBreaker) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
	}
}

// Do executes the request. A 5xx response counts as a failure for the
// breaker; when the circuit is open the request is not sent at all and
// circuitbreaker.ErrCircuitOpen is returned.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error: received status code %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
