package db

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// AddExpense records an expense and splits it equally across the group's
// members in the same transaction.
func (db *DB) AddExpense(ctx context.Context, in ledger.NewExpense) (*ledger.Expense, error) {
	e := &ledger.Expense{
		ID:          uuid.NewString(),
		GroupID:     in.GroupID,
		Payer:       ledger.NormalizeAddress(in.Payer),
		Amount:      in.Amount,
		Token:       ledger.NormalizeAddress(in.Token),
		Description: in.Description,
		TxHash:      in.TxHash,
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	members, err := groupMembers(ctx, tx, in.GroupID)
	if err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO expenses (id, group_id, payer, amount, token, description, tx_hash)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		 RETURNING created_at`,
		e.ID, e.GroupID, e.Payer, e.Amount.String(), e.Token, e.Description, e.TxHash,
	).Scan(&e.Timestamp); err != nil {
		return nil, err
	}

	if err := applyDeltas(ctx, tx, in.GroupID, ledger.EqualSplit(e.Amount, e.Payer, members)); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE groups SET total_expenses = total_expenses + $2::numeric WHERE id = $1`,
		in.GroupID, e.Amount.String(),
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns a group's expenses, newest first.
func (db *DB) ListExpenses(ctx context.Context, groupID string) ([]ledger.Expense, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, group_id, payer, amount::text, token, description, tx_hash, created_at
		 FROM expenses WHERE group_id = $1
		 ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Expense{}
	for rows.Next() {
		var (
			e      ledger.Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Payer, &amount, &e.Token, &e.Description, &e.TxHash, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// applyDeltas adds each delta to the member's balance row, creating it when
// missing. Rows are touched in address order.
func applyDeltas(ctx context.Context, tx pgx.Tx, groupID string, deltas map[string]decimal.Decimal) error {
	members := make([]string, 0, len(deltas))
	for m := range deltas {
		members = append(members, m)
	}
	sort.Strings(members)

	for _, m := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO balances (group_id, member_address, amount)
			 VALUES ($1, $2, $3::numeric)
			 ON CONFLICT (group_id, member_address) DO UPDATE
			 SET amount = balances.amount + EXCLUDED.amount`,
			groupID, m, deltas[m].String(),
		); err != nil {
			return err
		}
	}
	return nil
}
