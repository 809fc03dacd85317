package bank

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresSource struct {
	DB   *sql.DB
	Bank string
}

func (s PostgresSource) Load(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT block
		FROM question_blocks
		WHERE bank = $1
		ORDER BY position ASC, id ASC
	`, s.Bank)
	if err != nil {
		return nil, fmt.Errorf("query question blocks: %w", err)
	}
	defer rows.Close()

	var blocks []string
	for rows.Next() {
		var block string
		if err := rows.Scan(&block); err != nil {
			return nil, fmt.Errorf("scan question block: %w", err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBankNotFound, s.Bank)
	}
	return blocks, nil
}

func ListPostgresBanks(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT bank
		FROM question_blocks
		ORDER BY bank ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list question banks: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan bank name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank names: %w", err)
	}
	return names, nil
}

func RegisterPostgresBanks(ctx context.Context, reg *Registry, db *sql.DB) (int, error) {
	names, err := ListPostgresBanks(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		reg.Register(name, PostgresSource{DB: db, Bank: name})
	}
	return len(names), nil
}

func ImportPostgres(ctx context.Context, db *sql.DB, bankName string, blocks []string) (int, error) {
	bankName = normalizeName(bankName)
	if bankName == "" {
		return 0, fmt.Errorf("%w: bank name is required", ErrInvalidEntry)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_blocks WHERE bank = $1`, bankName); err != nil {
		return 0, fmt.Errorf("clear bank %s: %w", bankName, err)
	}
	for i, block := range blocks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_blocks (bank, position, block)
			VALUES ($1, $2, $3)
		`, bankName, i, block); err != nil {
			return 0, fmt.Errorf("insert block %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(blocks), nil
}
