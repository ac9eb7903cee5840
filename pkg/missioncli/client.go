// Package missioncli is the JSON-RPC 2.0 client for the missiond daemon.
// It speaks plain HTTP POST with bearer-token auth, matching the daemon's
// jhttp bridge.
package missioncli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Client talks to a running daemon.
type Client struct {
	addr   string
	token  string
	http   *http.Client
	nextID atomic.Int64
}

// NewClient builds a client for the daemon at addr (host:port).
func NewClient(addr, token string) *Client {
	return &Client{
		addr:  addr,
		token: token,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error returned by the daemon.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) invoke(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(&request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+c.addr+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error connecting to daemon: %w", err)
	}
	defer resp.Body.Close()

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if result != nil && len(r.Result) > 0 {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
