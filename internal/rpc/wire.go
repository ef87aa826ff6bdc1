// Package rpc serves and consumes ledger queries over JSON-RPC 2.0 on HTTP.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"ChainSnap/internal/ledger"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

// Method names.
const (
	MethodHead  = "state_head"
	MethodPage  = "state_page"
	MethodFetch = "state_fetch"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type headResult struct {
	Root hexutil.Bytes `json:"root"`
}

type pageParams struct {
	Pallet   string        `json:"pallet"`
	Entry    string        `json:"entry"`
	Prefix   hexutil.Bytes `json:"prefix,omitempty"`
	StartKey hexutil.Bytes `json:"start_key,omitempty"`
	At       hexutil.Bytes `json:"at,omitempty"`
	Limit    int           `json:"limit"`
}

type rawEntry struct {
	Key  hexutil.Bytes `json:"key"`
	Data hexutil.Bytes `json:"data"`
}

type pageResult struct {
	Root    hexutil.Bytes `json:"root"`
	Entries []rawEntry    `json:"entries"`
	NextKey hexutil.Bytes `json:"next_key,omitempty"`
}

type fetchParams struct {
	Key hexutil.Bytes `json:"key"`
	At  hexutil.Bytes `json:"at,omitempty"`
}

type fetchResult struct {
	Root  hexutil.Bytes `json:"root"`
	Data  hexutil.Bytes `json:"data,omitempty"`
	Found bool          `json:"found"`
}

func toPageParams(req ledger.PageRequest) pageParams {
	return pageParams{
		Pallet:   req.Namespace.Pallet,
		Entry:    req.Namespace.Entry,
		Prefix:   req.Prefix,
		StartKey: req.StartKey,
		At:       req.At.Bytes(),
		Limit:    req.Limit,
	}
}

func (p pageParams) request() (ledger.PageRequest, error) {
	at, err := ledger.RootFromBytes(p.At)
	if err != nil {
		return ledger.PageRequest{}, err
	}

	if p.Pallet == "" || p.Entry == "" {
		return ledger.PageRequest{}, fmt.Errorf("pallet and entry are required")
	}

	return ledger.PageRequest{
		Namespace: ledger.Namespace{Pallet: p.Pallet, Entry: p.Entry},
		Prefix:    p.Prefix,
		StartKey:  p.StartKey,
		At:        at,
		Limit:     p.Limit,
	}, nil
}

func toPageResult(page *ledger.Page) pageResult {
	res := pageResult{
		Root:    page.Root.Bytes(),
		Entries: make([]rawEntry, len(page.Entries)),
		NextKey: page.NextKey,
	}

	for i, e := range page.Entries {
		res.Entries[i] = rawEntry{Key: e.Key, Data: e.Data}
	}

	return res
}

func (r pageResult) page() (*ledger.Page, error) {
	root, err := ledger.RootFromBytes(r.Root)
	if err != nil {
		return nil, err
	}

	page := &ledger.Page{Root: root, Entries: make([]ledger.RawEntry, len(r.Entries)), NextKey: r.NextKey}
	for i, e := range r.Entries {
		page.Entries[i] = ledger.RawEntry{Key: e.Key, Data: e.Data}
	}

	return page, nil
}
