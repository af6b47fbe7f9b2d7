// Package ocs implements the legacy OCS JSON envelope used by the
// federated share endpoints. Every payload rides inside
// {"ocs":{"meta":{...},"data":{...}}}; success is signalled by meta
// statuscode 100 (v1) or 200 (v2), not by the HTTP status alone.
package ocs

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Meta statuscodes.
const (
	StatusOK   = 100
	StatusOKv2 = 200
)

// Meta carries the envelope's status block.
type Meta struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statuscode"`
	Message    string `json:"message"`
}

// Response is a decoded envelope.
type Response struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type envelope struct {
	OCS Response `json:"ocs"`
}

// IsSuccess reports whether the meta block signals success.
func (m Meta) IsSuccess() bool {
	return m.StatusCode == StatusOK || m.StatusCode == StatusOKv2
}

// Decode parses an envelope from a response body.
func Decode(body []byte) (*Response, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("ocs: malformed envelope: %w", err)
	}
	return &env.OCS, nil
}

// WriteSuccess writes a success envelope with the given data payload.
func WriteSuccess(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Meta{Status: "ok", StatusCode: StatusOK, Message: "OK"}, data)
}

// WriteError writes a failure envelope. The HTTP status carries the
// transport-level verdict, the meta statuscode the protocol-level one.
func WriteError(w http.ResponseWriter, httpStatus, statusCode int, message string) {
	write(w, httpStatus, Meta{Status: "failure", StatusCode: statusCode, Message: message}, nil)
}

func write(w http.ResponseWriter, httpStatus int, meta Meta, data any) {
	if data == nil {
		data = struct{}{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatus)

	env := map[string]any{
		"ocs": map[string]any{
			"meta": meta,
			"data": data,
		},
	}
	// Encoding a map of marshalable values cannot fail.
	_ = json.NewEncoder(w).Encode(env)
}
