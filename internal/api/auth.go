package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/susu3304/dagsplit/internal/db"
	"github.com/susu3304/dagsplit/internal/ledger"
)

const (
	nonceTTL = 5 * time.Minute
	tokenTTL = 24 * time.Hour
)

var errBadSignature = errors.New("signature does not match address")

type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// SignInMessage is the text a wallet signs to prove control of address.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to dagsplit\n\nAddress: %s\nNonce: %s", ledger.NormalizeAddress(address), nonce)
}

// Auth handlers
func (a *API) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	nonce := generateRandomString(32)
	if err := a.store.PutNonce(r.Context(), req.Address, nonce, time.Now().Add(nonceTTL)); err != nil {
		a.internalError(w, "store nonce", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"nonce":   nonce,
		"message": SignInMessage(req.Address, nonce),
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Address) || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "address and signature are required")
		return
	}

	nonce, err := a.store.ConsumeNonce(r.Context(), req.Address)
	if errors.Is(err, db.ErrNonceNotFound) {
		writeError(w, http.StatusUnauthorized, "no pending sign-in, request a new nonce")
		return
	}
	if err != nil {
		a.internalError(w, "consume nonce", err)
		return
	}

	if err := verifySignature(req.Address, SignInMessage(req.Address, nonce), req.Signature); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	tokenString, err := a.issueToken(ledger.NormalizeAddress(req.Address))
	if err != nil {
		a.internalError(w, "issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":   tokenString,
		"address": ledger.NormalizeAddress(req.Address),
	})
}

func (a *API) issueToken(address string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := jwtToken.SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return tokenString, nil
}

// verifySignature checks a personal_sign signature of message by address.
func verifySignature(address, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("malformed signature")
	}
	// Wallets return v as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("malformed signature")
	}
	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return errBadSignature
	}
	return nil
}

// Middleware
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return a.jwtSecret, nil
		})

		if err != nil || !token.Valid || claims.Address == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
