// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package downloadpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// rpcClient is a minimal JSON-RPC 2.0 client over HTTP speaking aria2's wire
// shape (token-prefixed "secret" parameter, method names under the
// "aria2." namespace).
type rpcClient struct {
	endpoint string
	token    string
	http     *http.Client
}

func newRPCClient(endpoint, token string) *rpcClient {
	return &rpcClient{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("aria2 rpc error %d: %s", e.Code, e.Message)
}

func (c *rpcClient) call(ctx context.Context, method string, params []any, out any) error {
	allParams := append([]any{"token:" + c.token}, params...)
	req := rpcRequest{JSONRPC: "2.0", ID: "vidsync", Method: method, Params: allParams}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode rpc response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// GetVersion probes aria2.getVersion, used to confirm an instance is ready
// to accept tasks.
func (c *rpcClient) GetVersion(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "aria2.getVersion", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// AddURI submits a download task with the given candidate URLs (aria2 tries
// them in order) and per-task options, returning the assigned GID.
func (c *rpcClient) AddURI(ctx context.Context, urls []string, options map[string]string) (string, error) {
	var gid string
	params := []any{urls}
	if len(options) > 0 {
		params = append(params, options)
	}
	if err := c.call(ctx, "aria2.addUri", params, &gid); err != nil {
		return "", err
	}
	return gid, nil
}

// TaskStatus is the subset of aria2.tellStatus this pool consumes.
type TaskStatus struct {
	GID            string `json:"gid"`
	Status         string `json:"status"` // active, waiting, paused, error, complete, removed
	TotalLength    string `json:"totalLength"`
	CompletedLength string `json:"completedLength"`
	ErrorMessage   string `json:"errorMessage"`
}

// IsTerminal reports whether the status represents a finished task (success
// or failure), at which point the caller should stop polling.
func (s TaskStatus) IsTerminal() bool {
	switch s.Status {
	case "complete", "error", "removed":
		return true
	default:
		return false
	}
}

// TellStatus polls a task's current state.
func (c *rpcClient) TellStatus(ctx context.Context, gid string) (TaskStatus, error) {
	var status TaskStatus
	err := c.call(ctx, "aria2.tellStatus", []any{gid, []string{"gid", "status", "totalLength", "completedLength", "errorMessage"}}, &status)
	return status, err
}

// Shutdown requests a graceful daemon shutdown over RPC.
func (c *rpcClient) Shutdown(ctx context.Context) error {
	return c.call(ctx, "aria2.shutdown", nil, nil)
}
