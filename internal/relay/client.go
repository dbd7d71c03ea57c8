package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"heartline/internal/domain"
)

// errNotFound marks a 404 from the relay; lookups turn it into ok=false.
var errNotFound = errors.New("relay: not found")

// errConflict marks a 409 from the relay.
var errConflict = errors.New("relay: conflict")

// errForbidden marks a 403 from the relay.
var errForbidden = errors.New("relay: forbidden")

// HTTPClient talks to a relay Server. It implements domain.Directory and
// domain.Channel. Deadlines come from the caller's context.
type HTTPClient struct {
	Base string
	HTTP *http.Client
}

// NewHTTPClient returns a client for the relay at base.
func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

var (
	_ domain.Directory = (*HTTPClient)(nil)
	_ domain.Channel   = (*HTTPClient)(nil)
)

// ---------- domain.Directory ----------

func (c *HTTPClient) PublishCode(ctx context.Context, code domain.PairingCode, ttl time.Duration) (bool, error) {
	err := c.do(ctx, http.MethodPost, "/codes", publishRequest{Code: code, TTLms: ttl.Milliseconds()}, nil)
	if errors.Is(err, errConflict) {
		return false, nil
	}
	return err == nil, err
}

func (c *HTTPClient) LookupCode(ctx context.Context, value string) (domain.PairingCode, bool, error) {
	var out domain.PairingCode
	err := c.do(ctx, http.MethodGet, "/codes/"+url.PathEscape(value), nil, &out)
	return found(out, err)
}

func (c *HTTPClient) ConsumeCode(ctx context.Context, value string) (domain.PairingCode, bool, error) {
	var out domain.PairingCode
	err := c.do(ctx, http.MethodPost, "/codes/"+url.PathEscape(value)+"/consume", nil, &out)
	return found(out, err)
}

func (c *HTTPClient) DeleteCode(ctx context.Context, value string) error {
	return c.do(ctx, http.MethodDelete, "/codes/"+url.PathEscape(value), nil, nil)
}

func (c *HTTPClient) SwapOwnerCode(ctx context.Context, owner domain.Identity, value string, ttl time.Duration) (string, error) {
	var out swapResponse
	err := c.do(ctx, http.MethodPut, "/owners/"+url.PathEscape(owner.String())+"/code",
		swapRequest{Value: value, TTLms: ttl.Milliseconds()}, &out)
	return out.Previous, err
}

// PostAcceptance maps a 403 from the relay to domain.ErrClaimRejected.
func (c *HTTPClient) PostAcceptance(ctx context.Context, acc domain.Acceptance, ttl time.Duration) error {
	err := c.do(ctx, http.MethodPost, "/acceptances", acceptanceRequest{Acceptance: acc, TTLms: ttl.Milliseconds()}, nil)
	if errors.Is(err, errForbidden) {
		return fmt.Errorf("%w: %w", domain.ErrClaimRejected, err)
	}
	return err
}

func (c *HTTPClient) LookupAcceptance(ctx context.Context, owner domain.Identity, value string) (domain.Acceptance, bool, error) {
	var out domain.Acceptance
	err := c.do(ctx, http.MethodGet, acceptancePath(owner, value), nil, &out)
	return found(out, err)
}

func (c *HTTPClient) DeleteAcceptance(ctx context.Context, owner domain.Identity, value string) error {
	return c.do(ctx, http.MethodDelete, acceptancePath(owner, value), nil, nil)
}

func acceptancePath(owner domain.Identity, value string) string {
	return "/acceptances/" + url.PathEscape(owner.String()) + "/" + url.PathEscape(value)
}

// ---------- domain.Channel ----------

// Deliver posts env to the receiver's mailbox. Failures wrap
// domain.ErrDeliveryFailed so the outbox retries them.
func (c *HTTPClient) Deliver(ctx context.Context, env domain.SealedEnvelope) error {
	err := c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(env.Receiver.String()), env, nil)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	return err
}

func (c *HTTPClient) Fetch(ctx context.Context, recipient domain.Identity, limit int) ([]domain.SealedEnvelope, error) {
	path := "/msg/" + url.PathEscape(recipient.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.SealedEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

func (c *HTTPClient) Ack(ctx context.Context, recipient domain.Identity, count int) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(recipient.String())+"/ack", ackRequest{Count: count}, nil)
}

// ---------- helpers ----------

func found[T any](v T, err error) (T, bool, error) {
	if errors.Is(err, errNotFound) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(method, path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&er)
	msg := er.Error
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("relay %s %s: %w", method, path, errNotFound)
	case http.StatusConflict:
		return fmt.Errorf("relay %s %s: %w", method, path, errConflict)
	case http.StatusForbidden:
		return fmt.Errorf("relay %s %s: %s: %w", method, path, msg, errForbidden)
	default:
		return fmt.Errorf("relay %s %s: %s (%d)", method, path, msg, resp.StatusCode)
	}
}
