package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/observability"
)

// Generic client messages used when detail is redacted.
const (
	MessageAccessDenied  = "Access denied"
	MessageInternalError = "Internal server error"
)

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Message   string `json:"message"`
}

// StatusFromError returns the HTTP status carried by err, or 500.
func StatusFromError(err error) int {
	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) {
		if s := se.HTTPStatus(); s >= 400 && s < 600 {
			return s
		}
	}
	return http.StatusInternalServerError
}

// Translator renders errors as client responses and logs them.
type Translator struct {
	redact  bool
	trusted []netip.Prefix
	logger  *slog.Logger
	now     func() time.Time
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithTranslatorLogger sets the logger for security events.
func WithTranslatorLogger(logger *slog.Logger) TranslatorOption {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTranslatorTrustedProxies restricts which peers may supply
// X-Forwarded-For when logging the caller address.
func WithTranslatorTrustedProxies(prefixes []netip.Prefix) TranslatorOption {
	return func(t *Translator) { t.trusted = prefixes }
}

// NewTranslator creates a translator for environment. Error messages reach
// the client only when environment is "development".
func NewTranslator(environment string, opts ...TranslatorOption) *Translator {
	t := &Translator{
		redact: environment != "development",
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Render logs err and writes a JSON ErrorBody with the error's status.
// It satisfies auth.ErrorRenderer.
func (t *Translator) Render(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFromError(err)
	clientIP := auth.ClientIP(r, t.trusted)
	requestID := RequestIDFromContext(r.Context())

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t.logger.Warn("security event",
			"client_ip", clientIP,
			"status", status,
			"path", r.URL.Path,
			"message", err.Error(),
			"request_id", requestID,
		)
		observability.SecurityDenialsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	case status >= http.StatusInternalServerError:
		t.logger.Error("request failed",
			"client_ip", clientIP,
			"status", status,
			"path", r.URL.Path,
			"error", err.Error(),
			"request_id", requestID,
		)
	default:
		t.logger.Warn("request rejected",
			"client_ip", clientIP,
			"status", status,
			"path", r.URL.Path,
			"message", err.Error(),
			"request_id", requestID,
		)
	}

	if errors.Is(err, auth.ErrUnauthenticated) {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, status, ErrorBody{
		Timestamp: t.now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
		Message:   t.message(status, err),
	})
}

func (t *Translator) message(status int, err error) string {
	if !t.redact {
		return err.Error()
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return MessageAccessDenied
	case status >= http.StatusInternalServerError:
		return MessageInternalError
	default:
		return http.StatusText(status)
	}
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing JSON response", "error", err)
	}
}

// StatusError attaches an HTTP status to an error returned by a handler.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string   { return e.Err.Error() }
func (e *StatusError) Unwrap() error   { return e.Err }
func (e *StatusError) HTTPStatus() int { return e.Status }

// NewStatusError wraps err with status.
func NewStatusError(status int, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}
