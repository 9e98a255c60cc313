package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/susu3304/dagsplit/internal/ledger"
)

// groupColumns is followed by one more column holding the caller's balance.
const groupColumns = `g.id, g.name, g.creator, g.total_expenses::text, g.tx_hash, g.created_at,
	ARRAY(SELECT m.member_address FROM group_members m WHERE m.group_id = g.id ORDER BY m.position)`

// CreateGroup inserts a group with its creator and members. Every member
// starts with a zero balance.
func (db *DB) CreateGroup(ctx context.Context, in ledger.NewGroup) (*ledger.Group, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	creator := ledger.NormalizeAddress(in.Creator)
	members := ledger.MemberSet(creator, in.Members)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	g := &ledger.Group{
		ID:      id,
		Name:    in.Name,
		Creator: creator,
		Members: members,
		TxHash:  in.TxHash,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO groups (id, name, creator, tx_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		id, in.Name, creator, in.TxHash,
	).Scan(&g.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrGroupExists
		}
		return nil, err
	}

	for i, m := range members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, member_address, position) VALUES ($1, $2, $3)`,
			id, m, i,
		); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO balances (group_id, member_address, amount) VALUES ($1, $2, 0)`,
			id, m,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// ListGroups returns the groups member belongs to, newest first, with
// YourBalance set to member's balance.
func (db *DB) ListGroups(ctx context.Context, member string) ([]ledger.Group, error) {
	member = ledger.NormalizeAddress(member)
	rows, err := db.pool.Query(ctx,
		`SELECT `+groupColumns+`, COALESCE(b.amount, 0)::text
		 FROM groups g
		 JOIN group_members gm ON gm.group_id = g.id AND gm.member_address = $1
		 LEFT JOIN balances b ON b.group_id = g.id AND b.member_address = $1
		 ORDER BY g.created_at DESC`,
		member,
	)
	if err != nil {
		return nil, err
	}
	return collectGroups(rows)
}

func (db *DB) GetGroup(ctx context.Context, id string) (*ledger.Group, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+groupColumns+`, '0'
		 FROM groups g
		 WHERE g.id = $1`,
		id,
	)
	if err != nil {
		return nil, err
	}
	groups, err := collectGroups(rows)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrGroupNotFound
	}
	return &groups[0], nil
}

func collectGroups(rows pgx.Rows) ([]ledger.Group, error) {
	defer rows.Close()
	out := []ledger.Group{}
	for rows.Next() {
		var (
			g            ledger.Group
			total, yours string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Creator, &total, &g.TxHash, &g.CreatedAt, &g.Members, &yours); err != nil {
			return nil, err
		}
		var err error
		if g.TotalExpenses, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		if g.YourBalance, err = decimal.NewFromString(yours); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// groupMembers locks the group row for the rest of tx and returns its
// members in insertion order.
func groupMembers(ctx context.Context, tx pgx.Tx, groupID string) ([]string, error) {
	var members []string
	err := tx.QueryRow(ctx,
		`SELECT ARRAY(SELECT m.member_address FROM group_members m WHERE m.group_id = g.id ORDER BY m.position)
		 FROM groups g WHERE g.id = $1 FOR UPDATE`,
		groupID,
	).Scan(&members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	return members, err
}
