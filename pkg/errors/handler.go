package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// rendering is how one error type reaches a client
type rendering struct {
	status    int
	retryable bool
}

// renderings maps the engine taxonomy onto an HTTP status and a retry hint
var renderings = map[ErrorType]rendering{
	ErrorTypeNotFound:        {status: http.StatusNotFound},
	ErrorTypeInvalidArgument: {status: http.StatusBadRequest},
	ErrorTypeConflict:        {status: http.StatusConflict},
	ErrorTypeStoreFailure:    {status: http.StatusInternalServerError, retryable: true},
	ErrorTypeUnavailable:     {status: http.StatusServiceUnavailable, retryable: true},
	ErrorTypeInternal:        {status: http.StatusInternalServerError},
}

// ErrorHandler renders errors as ErrorResponse JSON
type ErrorHandler struct {
	logger     *zap.Logger
	debug      bool
	retryAfter time.Duration
}

// NewErrorHandler creates a new error handler. In debug mode causes and
// stack traces are included in the response details.
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger:     logger,
		debug:      debug,
		retryAfter: time.Minute,
	}
}

// WithRetryAfter sets the Retry-After hint sent with UNAVAILABLE responses,
// normally the store breaker's open timeout
func (h *ErrorHandler) WithRetryAfter(d time.Duration) *ErrorHandler {
	h.retryAfter = d
	return h
}

// Handle renders err. Errors outside the taxonomy become an opaque INTERNAL.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	appErr := GetAppError(err)
	if appErr == nil {
		appErr = &AppError{Type: ErrorTypeInternal, Message: "An internal error occurred", Cause: err}
	}

	out, ok := renderings[appErr.Type]
	if !ok {
		out = renderings[ErrorTypeInternal]
	}

	response := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Retryable: out.retryable,
		Details:   copyDetails(appErr.Details),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	if h.debug {
		if appErr.Cause != nil {
			response.Details = withDetail(response.Details, "cause", appErr.Cause.Error())
		}
		if appErr.StackTrace != "" {
			response.Details = withDetail(response.Details, "stack_trace", appErr.StackTrace)
		}
	}

	if appErr.Type == ErrorTypeUnavailable && h.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
	}

	h.log(r, appErr, out)
	h.write(w, out.status, response)
}

// HandleStatus renders a failure that did not come from the engine, such as
// an unknown route
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	errType := ErrorTypeInvalidArgument
	switch {
	case status == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case status >= 500:
		errType = ErrorTypeInternal
	}

	h.write(w, status, ErrorResponse{
		Error:     true,
		Type:      string(errType),
		Message:   message,
		RequestID: r.Header.Get("X-Request-ID"),
	})
}

func (h *ErrorHandler) log(r *http.Request, err *AppError, out rendering) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", out.status),
		zap.Bool("retryable", out.retryable),
		zap.String("request_id", r.Header.Get("X-Request-ID")),
	}
	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	if out.status >= 500 {
		h.logger.Error(err.Message, fields...)
		return
	}
	h.logger.Info(err.Message, fields...)
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

func copyDetails(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}

func withDetail(details map[string]interface{}, key string, value interface{}) map[string]interface{} {
	if details == nil {
		details = make(map[string]interface{})
	}
	details[key] = value
	return details
}
