package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"farm-ledger/internal/domain"
)

// SaveTokenState replaces all stored token ledgers in one transaction.
func (s *StateStore) SaveTokenState(ctx context.Context, snaps []domain.TokenSnapshot) error {
	return s.pool.inTx(ctx, "save_token_state", func(tx pgx.Tx) error {
		// balances and allowances cascade
		if _, err := tx.Exec(ctx, `DELETE FROM token_ledgers`); err != nil {
			return fmt.Errorf("clear token ledgers: %w", err)
		}

		batch := &pgx.Batch{}
		for _, t := range snaps {
			batch.Queue(`INSERT INTO token_ledgers (address, supply) VALUES ($1, $2::text::numeric)`,
				t.Address, numeric(t.Supply))
			for _, b := range t.Balances {
				batch.Queue(`INSERT INTO token_balances (token, owner, amount) VALUES ($1, $2, $3::text::numeric)`,
					t.Address, b.Owner, numeric(b.Amount))
			}
			for _, a := range t.Allowances {
				batch.Queue(`INSERT INTO token_allowances (token, owner, spender, amount) VALUES ($1, $2, $3, $4::text::numeric)`,
					t.Address, a.Owner, a.Spender, numeric(a.Amount))
			}
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert token ledgers: %w", err)
			}
		}
		return nil
	})
}

// LoadTokenState returns the stored token ledgers, ordered by address.
func (s *StateStore) LoadTokenState(ctx context.Context) (_ []domain.TokenSnapshot, err error) {
	defer observe("load_token_state", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT address, supply::text FROM token_ledgers ORDER BY address ASC`)
	if err != nil {
		return nil, fmt.Errorf("get token ledgers: %w", err)
	}
	out := []domain.TokenSnapshot{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			t      domain.TokenSnapshot
			supply string
		)
		if err := rows.Scan(&t.Address, &supply); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan token ledger: %w", err)
		}
		if t.Supply, err = parseNumeric("supply", supply); err != nil {
			rows.Close()
			return nil, err
		}
		index[t.Address] = len(out)
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token ledgers: %w", err)
	}

	if err := s.loadBalances(ctx, out, index); err != nil {
		return nil, err
	}
	if err := s.loadAllowances(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StateStore) loadBalances(ctx context.Context, out []domain.TokenSnapshot, index map[string]int) error {
	rows, err := s.pool.Query(ctx, `SELECT token, owner, amount::text FROM token_balances ORDER BY token ASC, owner ASC`)
	if err != nil {
		return fmt.Errorf("get token balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tok, amt string
			b        domain.TokenBalance
		)
		if err := rows.Scan(&tok, &b.Owner, &amt); err != nil {
			return fmt.Errorf("scan token balance: %w", err)
		}
		if b.Amount, err = parseNumeric("amount", amt); err != nil {
			return err
		}
		i := index[tok]
		out[i].Balances = append(out[i].Balances, b)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token balances: %w", err)
	}
	return nil
}

func (s *StateStore) loadAllowances(ctx context.Context, out []domain.TokenSnapshot, index map[string]int) error {
	rows, err := s.pool.Query(ctx, `
		SELECT token, owner, spender, amount::text
		FROM token_allowances
		ORDER BY token ASC, owner ASC, spender ASC
	`)
	if err != nil {
		return fmt.Errorf("get token allowances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tok, amt string
			a        domain.TokenAllowance
		)
		if err := rows.Scan(&tok, &a.Owner, &a.Spender, &amt); err != nil {
			return fmt.Errorf("scan token allowance: %w", err)
		}
		if a.Amount, err = parseNumeric("amount", amt); err != nil {
			return err
		}
		i := index[tok]
		out[i].Allowances = append(out[i].Allowances, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate token allowances: %w", err)
	}
	return nil
}
