// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poiesic/screener/core"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownSchema),
		errors.Is(err, core.ErrEmptyBatch),
		errors.Is(err, core.ErrUnknownDataset),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// detailFor returns the client-facing message for err. Internal failures
// are not described to the client.
func detailFor(err error, status int) string {
	switch {
	case errors.Is(err, core.ErrEmptyBatch):
		return "No queries provided."
	case errors.Is(err, core.ErrEntityNotFound):
		return "No such entity!"
	case status == http.StatusInternalServerError:
		return "Internal server error"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, ErrorResponse{Detail: detailFor(err, status)})
}

var (
	// ErrMatcherRequired is returned when a matcher is not provided.
	ErrMatcherRequired = errors.New("matcher required")

	// ErrCatalogRequired is returned when a dataset catalog is not provided.
	ErrCatalogRequired = errors.New("dataset catalog required")

	// ErrHealthRequired is returned when no health source is provided.
	ErrHealthRequired = errors.New("health source required")

	// errBadRequest marks malformed request parameters.
	errBadRequest = errors.New("bad request")
)
