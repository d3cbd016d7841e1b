package imsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
	"github.com/noah-isme/ims-console-api/pkg/middleware/requestid"
)

const maxBodyBytes = 10 << 20

// Observer receives one observation per upstream call.
type Observer interface {
	ObserveUpstream(method, endpoint string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	MaxIdleConns int
	Transport    http.RoundTripper
	Observer     Observer
	Logger       *zap.Logger
}

// Client calls the IMS REST backend on behalf of the signed-in console user.
// The caller's bearer token travels in the context (see WithToken) and is forwarded unchanged.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
	logger   *zap.Logger
}

// Meta is the list metadata the backend reports alongside collection responses.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if opts.MaxIdleConns > 0 {
			base.MaxIdleConns = opts.MaxIdleConns
			base.MaxIdleConnsPerHost = opts.MaxIdleConns
		}
		transport = base
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     &http.Client{Timeout: opts.Timeout, Transport: transport},
		observer: opts.Observer,
		logger:   opts.Logger,
	}
}

type tokenKey struct{}

// WithToken returns a context whose upstream calls carry token as a bearer credential.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Get issues a GET and decodes the response data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) (*Meta, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, out)
	return err
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body, out)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*Meta, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode upstream request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	label := endpointLabel(path)
	if err != nil {
		c.observe(method, label, 0, time.Since(start))
		c.logger.Sugar().Warnw("upstream call failed", "method", method, "endpoint", label, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(method, label, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to read upstream response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(method, path, resp.StatusCode, raw)
	}
	return decodeSuccess(raw, out)
}

func (c *Client) observe(method, endpoint string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(method, endpoint, status, d)
	}
}

// envelope is the {success,data,message,errors} wrapper some backend routes use.
type envelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Errors     json.RawMessage `json:"errors"`
	Pagination *Meta           `json:"pagination"`
	Total      *int            `json:"total"`
	Page       *int            `json:"page"`
	Limit      *int            `json:"limit"`
}

func parseEnvelope(raw []byte) (envelope, map[string]json.RawMessage, bool) {
	var env envelope
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return env, nil, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return env, nil, false
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return env, keys, false
	}
	return env, keys, true
}

func decodeSuccess(raw []byte, out interface{}) (*Meta, error) {
	env, keys, isObject := parseEnvelope(raw)
	_, hasData := keys["data"]
	if isObject && env.Success != nil && !*env.Success {
		msg := firstNonEmpty(env.Message, env.Error, appErrors.ErrUpstream.Message)
		return nil, appErrors.Clone(appErrors.ErrUpstream, msg)
	}

	var meta *Meta
	payload := bytes.TrimSpace(raw)
	if isObject && hasData {
		payload = env.Data
		meta = env.Pagination
		if meta == nil && env.Total != nil {
			meta = &Meta{Total: *env.Total}
			if env.Page != nil {
				meta.Page = *env.Page
			}
			if env.Limit != nil {
				meta.Limit = *env.Limit
			}
		}
	}

	if out == nil || len(payload) == 0 || string(payload) == "null" {
		return meta, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unexpected upstream response")
	}
	return meta, nil
}

func decodeError(method, path string, status int, raw []byte) error {
	env, _, _ := parseEnvelope(raw)
	msg := firstNonEmpty(env.Message, env.Error)
	cause := fmt.Errorf("%s %s: status %d", method, path, status)

	switch status {
	case http.StatusUnauthorized:
		return appErrors.Clone(appErrors.ErrSessionExpired, "")
	case http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrForbidden, msg)
	case http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, msg)
	case http.StatusConflict:
		return appErrors.Clone(appErrors.ErrConflict, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		fields, messages := decodeFieldErrors(env.Errors)
		if len(messages) > 0 {
			msg = strings.Join(messages, ", ")
		}
		return appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, msg), fields)
	}

	upstream := appErrors.Wrap(cause, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	if msg != "" {
		upstream.Message = msg
	}
	return upstream
}

type fieldError struct {
	Field   string `json:"field"`
	Path    string `json:"path"`
	Param   string `json:"param"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// decodeFieldErrors accepts {field: "msg"}, {field: {message}} or [{field|path|param, message|msg}].
// Messages come back in a stable order for the concatenated alert text.
func decodeFieldErrors(raw json.RawMessage) (map[string]string, []string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	fields := make(map[string]string)
	var messages []string

	if trimmed[0] == '[' {
		var list []fieldError
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, nil
		}
		for _, item := range list {
			name := firstNonEmpty(item.Field, item.Path, item.Param)
			message := firstNonEmpty(item.Message, item.Msg)
			if message == "" {
				continue
			}
			messages = append(messages, message)
			if name != "" {
				if _, seen := fields[name]; !seen {
					fields[name] = message
				}
			}
		}
		return fields, messages
	}

	var byField map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &byField); err != nil {
		return nil, nil
	}
	names := make([]string, 0, len(byField))
	for name := range byField {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var text string
		if err := json.Unmarshal(byField[name], &text); err != nil {
			var nested fieldError
			if err := json.Unmarshal(byField[name], &nested); err != nil {
				continue
			}
			text = firstNonEmpty(nested.Message, nested.Msg)
		}
		if text == "" {
			continue
		}
		fields[name] = text
		messages = append(messages, text)
	}
	return fields, messages
}

var idSegment = regexp.MustCompile(`^(?:[0-9a-fA-F]{24}|[0-9a-fA-F-]{36}|\d+)$`)

// endpointLabel collapses id-like path segments so metrics keep a bounded label set.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if idSegment.MatchString(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
