// Package orchestrator is the HTTP JSON client for the remote orchestrator
// service: get_proof_task, submit_proof, register_user, register_node and
// get_node all go through here, with every response classified into one of
// the four error kinds the rest of the pipeline reacts to.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/proverclient/internal/observability"
	"github.com/example/proverclient/pkg/proverapi"
)

// ErrorKind classifies a failed orchestrator call so callers can decide how
// to retry without inspecting HTTP status codes themselves.
type ErrorKind int

const (
	// KindTransient covers network failures and 5xx responses: the same
	// request may succeed if retried after a delay.
	KindTransient ErrorKind = iota
	// KindRateLimited is a 429; RetryAfter, if non-zero, is the server's
	// requested backoff.
	KindRateLimited
	// KindPermanent covers 4xx responses other than 429: the request
	// itself is wrong and retrying unchanged will not help.
	KindPermanent
	// KindMalformed means the server replied 2xx but the body could not be
	// decoded as the expected JSON shape.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindRateLimited:
		return "RateLimited"
	case KindPermanent:
		return "Permanent"
	case KindMalformed:
		return "Malformed"
	default:
		return "Unknown"
	}
}

// Error wraps a classified failure from a call to the orchestrator.
type Error struct {
	Kind       ErrorKind
	StatusCode int        // 0 for connection-level failures
	RetryAfter time.Duration
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("orchestrator: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("orchestrator: %s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// Client talks JSON-over-HTTPS to a single orchestrator base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client with the given request timeout applied per call.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetProofTask requests a unit of work for the given node identity.
func (c *Client) GetProofTask(ctx context.Context, req proverapi.GetProofTaskRequest) (*proverapi.GetProofTaskResponse, error) {
	var resp proverapi.GetProofTaskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitProof reports a completed proof (or, for hash-only tasks, its hash).
func (c *Client) SubmitProof(ctx context.Context, req proverapi.SubmitProofRequest) (*proverapi.SubmitProofResponse, error) {
	var resp proverapi.SubmitProofResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/tasks/submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterUser links a wallet address to a new orchestrator account.
func (c *Client) RegisterUser(ctx context.Context, req proverapi.RegisterUserRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v3/users", req, &struct{}{})
}

// RegisterNode creates a node under an existing user account.
func (c *Client) RegisterNode(ctx context.Context, req proverapi.RegisterNodeRequest) (*proverapi.RegisterNodeResponse, error) {
	var resp proverapi.RegisterNodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/nodes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetNode fetches metadata about a previously registered node.
func (c *Client) GetNode(ctx context.Context, nodeID string) (*proverapi.GetNodeResponse, error) {
	var resp proverapi.GetNodeResponse
	path := "/v3/nodes/" + nodeID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, out any) error {
	ctx, span := observability.StartSpan(ctx, "orchestrator.request",
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)
	defer span.End()

	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return &Error{Kind: KindPermanent, Message: "encode request: " + err.Error()}
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &Error{Kind: KindPermanent, Message: "build request: " + err.Error()}
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &Error{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &Error{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    readErrBody(resp.Body),
		}
	}
	if resp.StatusCode >= 500 {
		return &Error{Kind: KindTransient, StatusCode: resp.StatusCode, Message: readErrBody(resp.Body)}
	}
	if resp.StatusCode >= 400 {
		return &Error{Kind: KindPermanent, StatusCode: resp.StatusCode, Message: readErrBody(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

func readErrBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(b))
}

// parseRetryAfter supports only the delay-seconds form of Retry-After; the
// HTTP-date form is rare enough from this orchestrator that callers fall
// back to their own default backoff when it parses as zero.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
