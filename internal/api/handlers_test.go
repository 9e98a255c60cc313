package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/dagsplit/internal/config"
	"github.com/susu3304/dagsplit/internal/db"
	"github.com/susu3304/dagsplit/internal/ledger"
)

const (
	alice = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	bob   = "0x8ba1f109551bd432803012645ac136ddd64dba72"
	carol = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
)

// memStore is an in-memory Store with the same balance rules as the
// PostgreSQL one.
type memStore struct {
	mu          sync.Mutex
	pingErr     error
	groups      map[string]*ledger.Group
	expenses    []ledger.Expense
	settlements []ledger.Settlement
	balances    map[string]map[string]decimal.Decimal
	nonces      map[string]string
	seq         int
}

func newMemStore() *memStore {
	return &memStore{
		groups:   map[string]*ledger.Group{},
		balances: map[string]map[string]decimal.Decimal{},
		nonces:   map[string]string{},
	}
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) CreateGroup(_ context.Context, in ledger.NewGroup) (*ledger.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.ID == "" {
		s.seq++
		in.ID = "g" + strconv.Itoa(s.seq)
	}
	if _, ok := s.groups[in.ID]; ok {
		return nil, db.ErrGroupExists
	}
	g := &ledger.Group{ID: in.ID, Name: in.Name, Creator: ledger.NormalizeAddress(in.Creator), Members: ledger.MemberSet(in.Creator, in.Members), TxHash: in.TxHash}
	s.groups[g.ID] = g
	s.balances[g.ID] = map[string]decimal.Decimal{}
	for _, m := range g.Members {
		s.balances[g.ID][m] = decimal.Zero
	}
	return g, nil
}

func (s *memStore) GetGroup(_ context.Context, id string) (*ledger.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, db.ErrGroupNotFound
	}
	return g, nil
}

func (s *memStore) ListGroups(_ context.Context, member string) ([]ledger.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member = ledger.NormalizeAddress(member)
	out := []ledger.Group{}
	for id, g := range s.groups {
		if bal, ok := s.balances[id][member]; ok {
			cp := *g
			cp.YourBalance = bal
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) AddExpense(_ context.Context, in ledger.NewExpense) (*ledger.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[in.GroupID]
	if !ok {
		return nil, db.ErrGroupNotFound
	}
	e := ledger.Expense{ID: "e", GroupID: in.GroupID, Payer: ledger.NormalizeAddress(in.Payer), Amount: in.Amount, Token: in.Token, Description: in.Description, Timestamp: time.Now()}
	for m, d := range ledger.EqualSplit(in.Amount, e.Payer, g.Members) {
		s.balances[g.ID][m] = s.balances[g.ID][m].Add(d)
	}
	g.TotalExpenses = g.TotalExpenses.Add(in.Amount)
	s.expenses = append([]ledger.Expense{e}, s.expenses...)
	return &e, nil
}

func (s *memStore) ListExpenses(_ context.Context, groupID string) ([]ledger.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ledger.Expense{}
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) RecordSettlement(_ context.Context, in ledger.NewSettlement) (*ledger.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[in.GroupID]; !ok {
		return nil, db.ErrGroupNotFound
	}
	st := ledger.Settlement{ID: "s", GroupID: in.GroupID, Payer: ledger.NormalizeAddress(in.Payer), Payee: ledger.NormalizeAddress(in.Payee), Amount: in.Amount, Token: in.Token}
	bal := s.balances[in.GroupID]
	bal[st.Payer] = bal[st.Payer].Add(in.Amount)
	bal[st.Payee] = bal[st.Payee].Sub(in.Amount)
	s.settlements = append(s.settlements, st)
	return &st, nil
}

func (s *memStore) ListSettlements(_ context.Context, groupID string) ([]ledger.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ledger.Settlement{}
	for _, st := range s.settlements {
		if st.GroupID == groupID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *memStore) Balances(_ context.Context, groupID string) ([]ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ledger.Balance{}
	for m, amt := range s.balances[groupID] {
		out = append(out, ledger.Balance{GroupID: groupID, Member: m, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member < out[j].Member })
	return out, nil
}

func (s *memStore) PutNonce(_ context.Context, address, nonce string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[ledger.NormalizeAddress(address)] = nonce
	return nil
}

func (s *memStore) ConsumeNonce(_ context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	address = ledger.NormalizeAddress(address)
	n, ok := s.nonces[address]
	if !ok {
		return "", db.ErrNonceNotFound
	}
	delete(s.nonces, address)
	return n, nil
}

type recordingNotifier struct {
	events chan string
}

func (n *recordingNotifier) GroupCreated(_ context.Context, g ledger.Group) error {
	n.events <- "group:" + g.ID
	return nil
}

func (n *recordingNotifier) ExpenseAdded(_ context.Context, e ledger.Expense) error {
	n.events <- "expense:" + e.GroupID
	return nil
}

func (n *recordingNotifier) SettlementRecorded(_ context.Context, s ledger.Settlement) error {
	n.events <- "settlement:" + s.GroupID
	return errors.New("channel gone")
}

func (n *recordingNotifier) Reminder(context.Context, ledger.Group, []ledger.Transfer) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "test-secret", AllowedOrigins: []string{"*"}}
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGroupExpenseSettlementFlow(t *testing.T) {
	store := newMemStore()
	n := &recordingNotifier{events: make(chan string, 8)}
	h := New(testConfig(), store, WithNotifier(n)).Handler()

	w := do(t, h, "POST", "/api/groups", `{"id":"7","name":" trip ","creator":"`+alice+`","members":["`+bob+`","`+carol+`"],"txHash":"0x01"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	g := decode[ledger.Group](t, w)
	assert.Equal(t, "trip", g.Name)
	assert.Equal(t, []string{alice, bob, carol}, g.Members)
	assert.Equal(t, "group:7", <-n.events)

	w = do(t, h, "POST", "/api/groups", `{"id":"7","name":"again","creator":"`+alice+`"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, "POST", "/api/expenses", `{"groupId":"7","payer":"`+alice+`","amount":"30","description":"dinner"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	e := decode[ledger.Expense](t, w)
	assert.Equal(t, ledger.NativeToken, e.Token)
	assert.Equal(t, "expense:7", <-n.events)

	w = do(t, h, "GET", "/api/groups?userAddress="+bob, "")
	require.Equal(t, http.StatusOK, w.Code)
	groups := decode[[]ledger.Group](t, w)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].YourBalance.Equal(decimal.NewFromInt(-10)))
	assert.True(t, groups[0].TotalExpenses.Equal(decimal.NewFromInt(30)))

	w = do(t, h, "GET", "/api/groups/7/plan", "")
	require.Equal(t, http.StatusOK, w.Code)
	plan := decode[[]ledger.Transfer](t, w)
	require.Len(t, plan, 2)
	assert.Equal(t, alice, plan[0].To)

	w = do(t, h, "POST", "/api/settlements", `{"groupId":"7","payer":"`+bob+`","payee":"`+alice+`","amount":10}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "settlement:7", <-n.events)

	w = do(t, h, "GET", "/api/groups/7/balances", "")
	require.Equal(t, http.StatusOK, w.Code)
	balances := decode[[]ledger.Balance](t, w)
	require.Len(t, balances, 3)
	want := map[string]string{alice: "10", bob: "0", carol: "-10"}
	for _, b := range balances {
		assert.True(t, b.Amount.Equal(decimal.RequireFromString(want[b.Member])), "%s: %s", b.Member, b.Amount)
	}

	w = do(t, h, "GET", "/api/expenses?groupId=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ledger.Expense](t, w), 1)

	w = do(t, h, "GET", "/api/settlements?groupId=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ledger.Settlement](t, w), 1)
}

func TestValidationErrors(t *testing.T) {
	h := New(testConfig(), newMemStore()).Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"groups without user", "GET", "/api/groups", "", http.StatusBadRequest},
		{"group body", "POST", "/api/groups", `{`, http.StatusBadRequest},
		{"group name", "POST", "/api/groups", `{"creator":"` + alice + `"}`, http.StatusBadRequest},
		{"group member", "POST", "/api/groups", `{"name":"x","creator":"` + alice + `","members":["bob"]}`, http.StatusBadRequest},
		{"expenses without group", "GET", "/api/expenses", "", http.StatusBadRequest},
		{"expenses unknown group", "GET", "/api/expenses?groupId=404", "", http.StatusNotFound},
		{"expense amount", "POST", "/api/expenses", `{"groupId":"1","payer":"` + alice + `","amount":"0"}`, http.StatusBadRequest},
		{"expense amount text", "POST", "/api/expenses", `{"groupId":"1","payer":"` + alice + `","amount":"ten"}`, http.StatusBadRequest},
		{"expense unknown group", "POST", "/api/expenses", `{"groupId":"1","payer":"` + alice + `","amount":"1"}`, http.StatusNotFound},
		{"expense token", "POST", "/api/expenses", `{"groupId":"1","payer":"` + alice + `","amount":"1","token":"bdag"}`, http.StatusBadRequest},
		{"settlement self", "POST", "/api/settlements", `{"groupId":"1","payer":"` + alice + `","payee":"` + alice + `","amount":"1"}`, http.StatusBadRequest},
		{"settlement unknown group", "POST", "/api/settlements", `{"groupId":"1","payer":"` + alice + `","payee":"` + bob + `","amount":"1"}`, http.StatusNotFound},
		{"balances unknown group", "GET", "/api/groups/404/balances", "", http.StatusNotFound},
		{"plan unknown group", "GET", "/api/groups/404/plan", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decode[map[string]string](t, w)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSignInRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	store := newMemStore()
	_, err = store.CreateGroup(context.Background(), ledger.NewGroup{ID: "1", Name: "trip", Creator: address})
	require.NoError(t, err)
	h := New(testConfig(), store).Handler()

	w := do(t, h, "GET", "/api/me/groups", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, "POST", "/api/auth/verify", `{"address":"`+address+`","signature":"0x00"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no nonce issued yet")

	w = do(t, h, "POST", "/api/auth/nonce", `{"address":"`+address+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[map[string]string](t, w)
	require.Len(t, challenge["nonce"], 32)
	assert.Equal(t, SignInMessage(address, challenge["nonce"]), challenge["message"])

	sig, err := crypto.Sign(accounts.TextHash([]byte(challenge["message"])), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	w = do(t, h, "POST", "/api/auth/verify", `{"address":"`+address+`","signature":"`+hexutil.Encode(sig)+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[map[string]string](t, w)["token"]
	require.NotEmpty(t, token)

	w = do(t, h, "GET", "/api/me/groups", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	groups := decode[[]ledger.Group](t, w)
	require.Len(t, groups, 1)
	assert.Equal(t, "1", groups[0].ID)

	// The nonce is single use.
	w = do(t, h, "POST", "/api/auth/verify", `{"address":"`+address+`","signature":"`+hexutil.Encode(sig)+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, "GET", "/api/me/groups", "", "Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, h, "GET", "/api/me/groups", "", "Authorization", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	store := newMemStore()
	h := New(testConfig(), store).Handler()

	w := do(t, h, "POST", "/api/auth/nonce", `{"address":"`+alice+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	msg := decode[map[string]string](t, w)["message"]

	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	w = do(t, h, "POST", "/api/auth/verify", `{"address":"`+alice+`","signature":"`+hexutil.Encode(sig)+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errBadSignature.Error(), decode[map[string]string](t, w)["error"])
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 1
	h := New(cfg, newMemStore()).Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, "GET", "/api/groups?userAddress="+alice, "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/healthz", "").Code, "health is not limited")
}

func TestHealthAndMetrics(t *testing.T) {
	store := newMemStore()
	h := New(testConfig(), store).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/healthz", "").Code)
	store.pingErr = errors.New("connection refused")
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "GET", "/healthz", "").Code)

	w := do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dagsplit_http_requests_total{method="GET",route="/healthz",status="503"} 1`)
}

func TestCORS(t *testing.T) {
	h := New(testConfig(), newMemStore()).Handler()
	req := httptest.NewRequest("OPTIONS", "/api/groups", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGenerateRandomString(t *testing.T) {
	a, b := generateRandomString(32), generateRandomString(32)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
