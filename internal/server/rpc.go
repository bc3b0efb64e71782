package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	apierrors "github.com/copyleftdev/stochopt/internal/errors"
	"github.com/copyleftdev/stochopt/internal/logging"
	"github.com/copyleftdev/stochopt/internal/optimization/benchmarks"
)

// rpcRequest is a JSON-RPC 2.0 request. Params may be an object or a
// one-element array holding the object.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

// idParams are the params of the status and cancel methods.
type idParams struct {
	ID string `json:"optimization_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, nil, apierrors.BadRequest("Parse error").WithCode(apierrors.CodeParseError))
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, request.ID, apierrors.BadRequest("Invalid Request").WithCode(apierrors.CodeInvalidRequest))
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "optimization.start":
		var req OptimizeRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.Start(req)
		}
	case "optimization.status":
		var p idParams
		if err = decodeParams(request.Params, &p); err == nil {
			result, err = s.Status(p.ID)
		}
	case "optimization.cancel":
		var p idParams
		if err = decodeParams(request.Params, &p); err == nil {
			if err = s.Cancel(p.ID); err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	case "optimization.list":
		result, err = s.List()
	case "benchmarks.list":
		result = benchmarks.All()
	default:
		err = apierrors.NotFound("Method not found: %s", request.Method).WithCode(apierrors.CodeMethodNotFound)
	}

	if err != nil {
		s.respondWithError(w, request.ID, err)
		return
	}

	respondJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

// decodeParams decodes params into v, unwrapping a one-element array.
func decodeParams(params json.RawMessage, v interface{}) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 {
		return apierrors.BadRequest("missing params")
	}
	if params[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(params, &list); err != nil {
			return apierrors.BadRequest("invalid params: %v", err)
		}
		if len(list) != 1 {
			return apierrors.BadRequest("expected one parameter object, got %d", len(list))
		}
		params = list[0]
	}

	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierrors.BadRequest("invalid params: %v", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response. Transport status is
// always 200.
func (s *Server) respondWithError(w http.ResponseWriter, id interface{}, err error) {
	e := apierrors.From(err)
	fields := logging.Fields{
		"code":    e.Code,
		"message": e.Message,
	}
	if e.Code == apierrors.CodeInternalError {
		fields["error"] = e.Error()
		s.logger.Error("rpc request failed", fields)
	} else {
		s.logger.Debug("rpc request rejected", fields)
	}

	respondJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: e.Code, Message: e.Message},
	})
}
