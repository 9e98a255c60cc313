package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// RecordSettlement stores a settlement. The payer's balance rises by the
// amount and the payee's falls by it.
func (db *DB) RecordSettlement(ctx context.Context, in ledger.NewSettlement) (*ledger.Settlement, error) {
	s := &ledger.Settlement{
		ID:      uuid.NewString(),
		GroupID: in.GroupID,
		Payer:   ledger.NormalizeAddress(in.Payer),
		Payee:   ledger.NormalizeAddress(in.Payee),
		Amount:  in.Amount,
		Token:   ledger.NormalizeAddress(in.Token),
		TxHash:  in.TxHash,
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := groupMembers(ctx, tx, in.GroupID); err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO settlements (id, group_id, payer, payee, amount, token, tx_hash)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		 RETURNING created_at`,
		s.ID, s.GroupID, s.Payer, s.Payee, s.Amount.String(), s.Token, s.TxHash,
	).Scan(&s.Timestamp); err != nil {
		return nil, err
	}

	deltas := map[string]decimal.Decimal{}
	deltas[s.Payer] = deltas[s.Payer].Add(s.Amount)
	deltas[s.Payee] = deltas[s.Payee].Sub(s.Amount)
	if err := applyDeltas(ctx, tx, s.GroupID, deltas); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSettlements returns a group's settlements, newest first.
func (db *DB) ListSettlements(ctx context.Context, groupID string) ([]ledger.Settlement, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, group_id, payer, payee, amount::text, token, tx_hash, created_at
		 FROM settlements WHERE group_id = $1
		 ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Settlement{}
	for rows.Next() {
		var (
			s      ledger.Settlement
			amount string
		)
		if err := rows.Scan(&s.ID, &s.GroupID, &s.Payer, &s.Payee, &amount, &s.Token, &s.TxHash, &s.Timestamp); err != nil {
			return nil, err
		}
		if s.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Balances returns every member balance of a group ordered by member.
func (db *DB) Balances(ctx context.Context, groupID string) ([]ledger.Balance, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT group_id, member_address, amount::text
		 FROM balances WHERE group_id = $1
		 ORDER BY member_address`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Balance{}
	for rows.Next() {
		var (
			b      ledger.Balance
			amount string
		)
		if err := rows.Scan(&b.GroupID, &b.Member, &amount); err != nil {
			return nil, err
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
