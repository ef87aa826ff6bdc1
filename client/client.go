// Package client is a Go client for the public HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ChainSnap/internal/api"
	"ChainSnap/internal/balance"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

// defaultTimeout bounds each request.
const defaultTimeout = 30 * time.Second

// Client connects to a telemetry API server.
type Client struct {
	base string       // base is the server URL including the version, e.g. "http://host:3000/v1"
	http *http.Client // http performs the requests
}

// Attestation is a signed usage payload to verify.
type Attestation struct {
	Data      string // Data is the signed payload text
	Scheme    string // Scheme is sr25519, ed25519 or ecdsa; empty means sr25519
	Address   string // Address is the signer's SS58 address
	Signature string // Signature is 0x-prefixed hex
}

// Balance is the aggregated total of one identity.
type Balance = api.BalanceResponse

// Verification is the server's verdict on an attestation.
type Verification = api.VerifyResponse

// New creates a client for the server at baseURL, e.g. "http://127.0.0.1:3000".
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	return &Client{
		base: strings.TrimRight(baseURL, "/") + "/v1",
		http: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Modules lists the registered modules.
func (c *Client) Modules(ctx context.Context) ([]chain.Module, error) {
	var list []chain.Module

	if err := c.get(ctx, "/modules", &list); err != nil {
		return nil, fmt.Errorf("list modules:\n%w", err)
	}

	return list, nil
}

// Module returns one module by id.
func (c *Client) Module(ctx context.Context, id uint64) (chain.Module, error) {
	var m chain.Module

	if err := c.get(ctx, "/modules/"+strconv.FormatUint(id, 10), &m); err != nil {
		return chain.Module{}, fmt.Errorf("get module %d:\n%w", id, err)
	}

	return m, nil
}

// AuthorizedModule returns the authorized module id.
func (c *Client) AuthorizedModule(ctx context.Context) (uint64, error) {
	var resp struct {
		ID uint64 `json:"id"`
	}

	if err := c.get(ctx, "/modules/authorized", &resp); err != nil {
		return 0, fmt.Errorf("get authorized module:\n%w", err)
	}

	return resp.ID, nil
}

// Verify asks the server to check an attestation. A malformed attestation is
// an *APIError with status 400 whose Verification carries the reason.
func (c *Client) Verify(ctx context.Context, a Attestation) (Verification, error) {
	req := api.VerifyRequest{
		Data: a.Data,
		Server: api.ServerSignature{
			Scheme:    a.Scheme,
			Address:   a.Address,
			Signature: a.Signature,
		},
	}

	var resp Verification

	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return resp, fmt.Errorf("verify:\n%w", err)
	}

	return resp, nil
}

// Balance returns the aggregated total of id.
func (c *Client) Balance(ctx context.Context, id identity.Identity) (Balance, error) {
	var b Balance

	if err := c.get(ctx, "/balances/"+id.String(), &b); err != nil {
		return Balance{}, fmt.Errorf("get balance %s:\n%w", id, err)
	}

	return b, nil
}

// Stats returns the network statistics of the last aggregation.
func (c *Client) Stats(ctx context.Context) (*balance.Report, error) {
	var r balance.Report

	if err := c.get(ctx, "/stats", &r); err != nil {
		return nil, fmt.Errorf("get stats:\n%w", err)
	}

	return &r, nil
}
