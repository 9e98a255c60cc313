package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// PutNonce stores the pending sign-in challenge for address, replacing any
// earlier one.
func (db *DB) PutNonce(ctx context.Context, address, nonce string, expiresAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO auth_nonces (address, nonce, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (address) DO UPDATE
		 SET nonce = EXCLUDED.nonce, expires_at = EXCLUDED.expires_at`,
		ledger.NormalizeAddress(address), nonce, expiresAt,
	)
	return err
}

// ConsumeNonce removes and returns the unexpired challenge for address.
func (db *DB) ConsumeNonce(ctx context.Context, address string) (string, error) {
	var nonce string
	err := db.pool.QueryRow(ctx,
		`DELETE FROM auth_nonces
		 WHERE address = $1 AND expires_at > CURRENT_TIMESTAMP
		 RETURNING nonce`,
		ledger.NormalizeAddress(address),
	).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNonceNotFound
	}
	return nonce, err
}
