package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/logger"
)

// Server exposes a ledger.Source as JSON-RPC over HTTP.
type Server struct {
	src ledger.Source // src answers the queries
}

// NewServer creates a JSON-RPC handler for src.
func NewServer(src ledger.Source) *Server {
	return &Server{src: src}
}

// ServeHTTP handles one JSON-RPC request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, 0, codeInvalidRequest, "POST required")
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, 0, codeInvalidRequest, "failed to read request body")
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, 0, codeInvalidRequest, "request body required")
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, 0, codeParseError, "invalid JSON payload")
		return
	}

	result, code, err := s.dispatch(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		switch code {
		case codeMethodNotFound:
			status = http.StatusNotFound
		case codeServerError:
			status = http.StatusInternalServerError
			logger.Warn("rpc call failed", "method", req.Method, "error", err)
		}
		writeError(w, status, req.ID, code, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

// dispatch routes a request to its handler.
func (s *Server) dispatch(ctx context.Context, req request) (any, int, error) {
	switch req.Method {
	case MethodHead:
		root, err := s.src.Head(ctx)
		if err != nil {
			return nil, codeServerError, err
		}

		return headResult{Root: root.Bytes()}, 0, nil

	case MethodPage:
		var params pageParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, codeInvalidParams, err
		}

		pageReq, err := params.request()
		if err != nil {
			return nil, codeInvalidParams, err
		}

		page, err := s.src.Page(ctx, pageReq)
		if err != nil {
			return nil, codeServerError, err
		}

		return toPageResult(page), 0, nil

	case MethodFetch:
		var params fetchParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, codeInvalidParams, err
		}

		at, err := ledger.RootFromBytes(params.At)
		if err != nil {
			return nil, codeInvalidParams, err
		}

		if len(params.Key) == 0 {
			return nil, codeInvalidParams, fmt.Errorf("key is required")
		}

		fetched, err := s.src.Fetch(ctx, ledger.FetchRequest{Key: params.Key, At: at})
		if err != nil {
			return nil, codeServerError, err
		}

		return fetchResult{Root: fetched.Root.Bytes(), Data: fetched.Data, Found: fetched.Found}, 0, nil

	default:
		return nil, codeMethodNotFound, fmt.Errorf("unknown method %s", req.Method)
	}
}

// decodeParams parses the params object, rejecting unknown fields.
func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("params required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	return nil
}

func writeError(w http.ResponseWriter, status int, id uint64, code int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}

func writeResult(w http.ResponseWriter, id uint64, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "encode result")
		return
	}

	_ = json.NewEncoder(w).Encode(response{JSONRPC: jsonRPCVersion, ID: id, Result: data})
}
