// Package mirror is the REST client for the off-chain ledger mirror.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// MaxConsecutiveFailures trips the breaker.
var MaxConsecutiveFailures uint32 = 5

// APIError is a non-2xx answer from the mirror.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mirror: %d %s", e.Status, e.Message)
}

// Signer produces a personal_sign signature over message.
type Signer interface {
	SignMessage(ctx context.Context, message string) (string, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     *log.Entry

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *log.Entry) Option {
	return func(cl *Client) { cl.log = l }
}

// WithToken sets a bearer token obtained earlier through SignIn.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.WithField("component", "mirror"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cb = newCircuitBreaker(c.log)
	return c
}

func newCircuitBreaker(l *log.Entry) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "mirror",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= MaxConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				l.Warn("mirror seems down, stop allowing requests")
			}
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				l.Info("checking mirror status")
			}
			if from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed {
				l.Info("mirror seems ok, restart allowing requests")
			}
		},
	})
}

// Token returns the bearer token set by SignIn, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) CreateGroup(ctx context.Context, g ledger.NewGroup) (*ledger.Group, error) {
	var out ledger.Group
	if err := c.do(ctx, http.MethodPost, "/groups", nil, g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGroups returns the groups user belongs to, with yourBalance relative to user.
func (c *Client) ListGroups(ctx context.Context, user string) ([]ledger.Group, error) {
	var out []ledger.Group
	q := url.Values{"userAddress": {user}}
	if err := c.do(ctx, http.MethodGet, "/groups", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddExpense(ctx context.Context, e ledger.NewExpense) (*ledger.Expense, error) {
	var out ledger.Expense
	if err := c.do(ctx, http.MethodPost, "/expenses", nil, e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListExpenses(ctx context.Context, groupID string) ([]ledger.Expense, error) {
	var out []ledger.Expense
	q := url.Values{"groupId": {groupID}}
	if err := c.do(ctx, http.MethodGet, "/expenses", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordSettlement(ctx context.Context, s ledger.NewSettlement) (*ledger.Settlement, error) {
	var out ledger.Settlement
	if err := c.do(ctx, http.MethodPost, "/settlements", nil, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Settlements(ctx context.Context, groupID string) ([]ledger.Settlement, error) {
	var out []ledger.Settlement
	q := url.Values{"groupId": {groupID}}
	if err := c.do(ctx, http.MethodGet, "/settlements", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Balances(ctx context.Context, groupID string) ([]ledger.Balance, error) {
	var out []ledger.Balance
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/balances", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Plan returns the suggested settlement transfers for a group.
func (c *Client) Plan(ctx context.Context, groupID string) ([]ledger.Transfer, error) {
	var out []ledger.Transfer
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/plan", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MyGroups lists the signed-in member's groups.
func (c *Client) MyGroups(ctx context.Context) ([]ledger.Group, error) {
	var out []ledger.Group
	if err := c.do(ctx, http.MethodGet, "/me/groups", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SignIn asks the mirror for a nonce, signs the returned message with
// signer and exchanges the signature for a bearer token.
func (c *Client) SignIn(ctx context.Context, address string, signer Signer) (string, error) {
	var challenge struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/nonce", nil, map[string]string{"address": address}, &challenge); err != nil {
		return "", err
	}

	signature, err := signer.SignMessage(ctx, challenge.Message)
	if err != nil {
		return "", err
	}

	var verified struct {
		Token string `json:"token"`
	}
	body := map[string]string{"address": address, "signature": signature}
	if err := c.do(ctx, http.MethodPost, "/auth/verify", nil, body, &verified); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = verified.Token
	c.mu.Unlock()
	return verified.Token, nil
}

type response struct {
	status int
	body   []byte
}

// do runs one request through the breaker. Only transport failures and 5xx
// answers count against it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("mirror: encode %s: %w", path, err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		r := &response{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, apiError(r)
		}
		return r, nil
	})
	if err != nil {
		if _, ok := err.(*APIError); ok {
			return err
		}
		return fmt.Errorf("mirror %s %s: %w", method, path, err)
	}

	r := res.(*response)
	if r.status < 200 || r.status > 299 {
		return apiError(r)
	}
	if out == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("mirror: decode %s: %w", path, err)
	}
	return nil
}

func apiError(r *response) *APIError {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(r.body, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(r.status)
	}
	return &APIError{Status: r.status, Message: body.Error}
}
