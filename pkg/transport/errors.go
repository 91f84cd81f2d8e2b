package transport

import (
	"encoding/json"
	"net/http"

	"github.com/rhuss/modelserve/pkg/api"
)

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteResponse writes resp in its single-key map form with status 200.
func WriteResponse(w http.ResponseWriter, resp api.Response) {
	WriteJSON(w, http.StatusOK, resp.AsMap())
}

// WriteError writes err as {"error": "<message>"}, deriving the status code
// from the error type.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorResponse(w, api.AsErrorResponse(err), api.StatusCode(err))
}

// WriteErrorResponse writes an ErrorResponse with an explicit status code,
// for failures detected before a command exists such as an oversized body.
func WriteErrorResponse(w http.ResponseWriter, resp *api.ErrorResponse, statusCode int) {
	WriteJSON(w, statusCode, resp.AsMap())
}
