package core

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// Response renders itself onto an HTTP response.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// JSONResponse is the standard JSON response structure
type JSONResponse struct {
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	Error   *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// jsonResponse implements Response for JSON rendering
type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON creates a 200 JSON response
func JSON(code string, data any, meta map[string]any) Response {
	return JSONWithStatus(http.StatusOK, code, data, meta)
}

// JSONWithStatus creates a JSON response with an explicit status code.
func JSONWithStatus(status int, code string, data any, meta map[string]any) Response {
	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code: code,
			Data: data,
			Meta: meta,
		},
	}
}

// JSONError creates a JSON error response from an error. HTTPError and
// ValidationError values anywhere in the chain select the status; anything
// else is an internal error whose message is not exposed.
func JSONError(err error) Response {
	status := http.StatusInternalServerError
	code := ErrInternalServerError.Key
	detail := &ErrorDetail{
		Code:    code,
		Message: http.StatusText(status),
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		status = http.StatusUnprocessableEntity
		code = "validation_error"
		detail.Code = code
		detail.Message = valErr.Error()
		if len(valErr) > 0 {
			detail.Details = make(map[string][]string, len(valErr))
			maps.Copy(detail.Details, valErr)
		}
	} else if httpErr, ok := AsHTTPError(err); ok {
		status = httpErr.Code
		code = httpErr.Key
		detail.Code = code
		detail.Message = http.StatusText(httpErr.Code)
	}

	return jsonResponse{
		status: status,
		body: JSONResponse{
			Code:  code,
			Error: detail,
		},
	}
}

// Render writes resp, falling back to a plain 500 if rendering fails before
// anything was written.
func Render(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := resp.Render(w, r); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
