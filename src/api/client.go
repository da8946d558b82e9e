package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"socialconnect/src/lib"
)

const maxResponseBytes = 4 << 20

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// Client wraps the SocialConnect REST backend: one method per endpoint.
// It never retries and never caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *lib.Metrics
	validate   *validator.Validate
}

func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, metrics *lib.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		validate:   validator.New(),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is returned for any non-2xx response. Details holds a JSON body
// re-encoded compactly; Text holds the raw body when it was not JSON.
type APIError struct {
	Op         string
	StatusCode int
	Details    string
	Text       string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: status %d, details: %s", e.Op, e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s: status %d, text: %s", e.Op, e.StatusCode, e.Text)
}

// Message returns the most specific human-readable message in the body.
func (e *APIError) Message() string {
	if e.Details != "" {
		var body map[string]any
		if err := json.Unmarshal([]byte(e.Details), &body); err == nil {
			for _, key := range []string{"detail", "message", "error"} {
				if v, ok := body[key].(string); ok && v != "" {
					return v
				}
			}
		}
		return e.Details
	}
	return e.Text
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

func (c *Client) get(ctx context.Context, path string, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	return c.do(req, op, out)
}

// postForm validates payload, encodes its `form`-tagged fields as multipart
// form data, and POSTs it. A nil payload sends an empty body.
func (c *Client) postForm(ctx context.Context, path string, op string, payload any, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		if err := c.validate.Struct(payload); err != nil {
			return fmt.Errorf("%s: invalid payload: %w", op, err)
		}
		buf, ct, err := encodeMultipart(payload)
		if err != nil {
			return fmt.Errorf("%s: encode form: %w", op, err)
		}
		body = buf
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	c.metrics.Inc("api_requests_total")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Inc("api_errors_total")
		c.logger.Warn("api call failed", "op", op, "request_id", requestID, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.Inc("api_errors_total")
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Inc("api_errors_total")
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var compact bytes.Buffer
		if len(bytes.TrimSpace(raw)) > 0 && json.Compact(&compact, raw) == nil {
			apiErr.Details = compact.String()
		} else {
			apiErr.Text = strings.TrimSpace(string(raw))
		}
		c.logger.Warn("api call rejected", "op", op, "request_id", requestID, "status", resp.StatusCode)
		return apiErr
	}

	c.logger.Debug("api call ok", "op", op, "request_id", requestID, "status", resp.StatusCode)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.metrics.Inc("api_errors_total")
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func encodeMultipart(payload any) (*bytes.Buffer, string, error) {
	v := reflect.ValueOf(payload)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, "", fmt.Errorf("form payload must be a struct, got %s", v.Kind())
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("form")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		value, ok := formValue(v.Field(i))
		if !ok {
			return nil, "", fmt.Errorf("field %s has unsupported kind %s", field.Name, field.Type.Kind())
		}
		if value == "" && opts == "omitempty" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func formValue(v reflect.Value) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	default:
		return "", false
	}
}

func pathf(format string, segments ...string) string {
	escaped := make([]any, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, escaped...)
}
