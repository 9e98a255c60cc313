package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupExists   = errors.New("group already exists")
	ErrNonceNotFound = errors.New("no pending sign-in for address")
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			creator TEXT NOT NULL,
			total_expenses NUMERIC NOT NULL DEFAULT 0,
			tx_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_reminded_at TIMESTAMPTZ,
			next_reminder_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			member_address TEXT NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (group_id, member_address)
		);
		CREATE INDEX IF NOT EXISTS idx_group_members_address ON group_members(member_address);

		CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			payer TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			token TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tx_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_group ON expenses(group_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS settlements (
			id UUID PRIMARY KEY,
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			payer TEXT NOT NULL,
			payee TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			token TEXT NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_settlements_group ON settlements(group_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS balances (
			group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			member_address TEXT NOT NULL,
			amount NUMERIC NOT NULL DEFAULT 0,
			UNIQUE (group_id, member_address)
		);

		CREATE TABLE IF NOT EXISTS auth_nonces (
			address TEXT PRIMARY KEY,
			nonce TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}
