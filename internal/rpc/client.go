package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ChainSnap/internal/ledger"
)

// Client queries a ledger node over JSON-RPC. It implements ledger.Source.
type Client struct {
	url    string        // url is the JSON-RPC endpoint
	http   *http.Client  // http performs the requests
	nextID atomic.Uint64 // nextID numbers requests
}

// NewClient creates a client for the endpoint at url.
func NewClient(url string, timeout time.Duration) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("endpoint url is required")
	}

	return &Client{url: url, http: &http.Client{Timeout: timeout}}, nil
}

// Head returns the latest state root.
func (c *Client) Head(ctx context.Context) (ledger.Root, error) {
	var res headResult
	if err := c.call(ctx, MethodHead, struct{}{}, &res); err != nil {
		return ledger.Root{}, err
	}

	return ledger.RootFromBytes(res.Root)
}

// Page returns one page of a namespace.
func (c *Client) Page(ctx context.Context, req ledger.PageRequest) (*ledger.Page, error) {
	var res pageResult
	if err := c.call(ctx, MethodPage, toPageParams(req), &res); err != nil {
		return nil, err
	}

	return res.page()
}

// Fetch returns the entry under an explicit key.
func (c *Client) Fetch(ctx context.Context, req ledger.FetchRequest) (*ledger.Fetched, error) {
	var res fetchResult
	if err := c.call(ctx, MethodFetch, fetchParams{Key: req.Key, At: req.At.Bytes()}, &res); err != nil {
		return nil, err
	}

	root, err := ledger.RootFromBytes(res.Root)
	if err != nil {
		return nil, err
	}

	return &ledger.Fetched{Root: root, Data: res.Data, Found: res.Found}, nil
}

// call performs one JSON-RPC round trip.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	body, err := json.Marshal(request{
		JSONRPC: jsonRPCVersion,
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp response
	decodeErr := json.NewDecoder(resp.Body).Decode(&rpcResp)

	if decodeErr == nil && rpcResp.Error != nil {
		return rpcResp.Error
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: status %s", method, resp.Status)
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}
