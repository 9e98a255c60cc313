package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/dagsplit/internal/ledger"
)

type signerFunc func(ctx context.Context, message string) (string, error)

func (f signerFunc) SignMessage(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

func TestCreateGroupAndList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var g ledger.NewGroup
			require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(ledger.Group{ID: g.ID, Name: g.Name, Creator: g.Creator, Members: g.Members})
		case http.MethodGet:
			assert.Equal(t, "0xabc", r.URL.Query().Get("userAddress"))
			json.NewEncoder(w).Encode([]ledger.Group{{ID: "7", Name: "trip", YourBalance: decimal.RequireFromString("-2.5")}})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL + "/api/")
	g, err := c.CreateGroup(context.Background(), ledger.NewGroup{ID: "7", Name: "trip", Creator: "0xabc", Members: []string{"0xdef"}})
	require.NoError(t, err)
	assert.Equal(t, "7", g.ID)
	assert.Equal(t, []string{"0xdef"}, g.Members)

	groups, err := c.ListGroups(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].YourBalance.Equal(decimal.RequireFromString("-2.5")))
}

func TestAPIErrorShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/expenses":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"amount must be positive"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.AddExpense(context.Background(), ledger.NewExpense{GroupID: "1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "amount must be positive", apiErr.Message)

	_, err = c.Settlements(context.Background(), "1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestBreakerOpensOnServerFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < int(MaxConsecutiveFailures); i++ {
		_, err := c.ListExpenses(context.Background(), "1")
		require.Error(t, err)
	}
	_, err := c.ListExpenses(context.Background(), "1")
	require.True(t, errors.Is(err, gobreaker.ErrOpenState), err)
	assert.Equal(t, int32(MaxConsecutiveFailures), atomic.LoadInt32(&hits))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"group not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	for i := 0; i < int(MaxConsecutiveFailures)+2; i++ {
		_, err := c.Balances(context.Background(), "missing")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	}
}

func TestSignIn(t *testing.T) {
	const address = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/nonce", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, address, body["address"])
		json.NewEncoder(w).Encode(map[string]string{"nonce": "n1", "message": "sign in: n1"})
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0xsig", body["signature"])
		json.NewEncoder(w).Encode(map[string]string{"token": "jwt"})
	})
	mux.HandleFunc("/me/groups", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing token"}`))
			return
		}
		json.NewEncoder(w).Encode([]ledger.Group{{ID: "1"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.MyGroups(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	var signed string
	token, err := c.SignIn(context.Background(), address, signerFunc(func(_ context.Context, msg string) (string, error) {
		signed = msg
		return "0xsig", nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, "sign in: n1", signed)
	assert.Equal(t, "jwt", c.Token())

	groups, err := c.MyGroups(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestSignInSignerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"nonce": "n1", "message": "m"})
	}))
	defer srv.Close()

	rejected := errors.New("rejected")
	_, err := New(srv.URL).SignIn(context.Background(), "0x1", signerFunc(func(context.Context, string) (string, error) {
		return "", rejected
	}))
	require.ErrorIs(t, err, rejected)
}
