package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// SaveFarmState replaces the stored farm snapshot in one transaction.
func (s *StateStore) SaveFarmState(ctx context.Context, snap *domain.FarmSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	return s.pool.inTx(ctx, "save_farm_state", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO farm_state (
				id, block, total_alloc_weight, total_reward_token_staked, last_top_up_time,
				paused, fee_bips, fee_recipient, reward_per_block, admin, pauser,
				auto_compounder, updated_at
			) VALUES (1, $1, $2, $3::text::numeric, $4, $5, $6, $7, $8::text::numeric, $9, $10, $11, now())
			ON CONFLICT (id) DO UPDATE SET
				block = EXCLUDED.block,
				total_alloc_weight = EXCLUDED.total_alloc_weight,
				total_reward_token_staked = EXCLUDED.total_reward_token_staked,
				last_top_up_time = EXCLUDED.last_top_up_time,
				paused = EXCLUDED.paused,
				fee_bips = EXCLUDED.fee_bips,
				fee_recipient = EXCLUDED.fee_recipient,
				reward_per_block = EXCLUDED.reward_per_block,
				admin = EXCLUDED.admin,
				pauser = EXCLUDED.pauser,
				auto_compounder = EXCLUDED.auto_compounder,
				updated_at = now()
		`,
			int64(snap.Block),
			int64(snap.TotalAllocWeight),
			numeric(snap.TotalRewardTokenStaked),
			snap.LastTopUpTime,
			snap.Paused,
			int64(snap.FeeBips),
			snap.FeeRecipient,
			numeric(snap.RewardPerBlock),
			snap.Admin,
			snap.Pauser,
			snap.AutoCompounder,
		)
		if err != nil {
			return fmt.Errorf("upsert farm state: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM farm_positions`); err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM farm_pools`); err != nil {
			return fmt.Errorf("clear pools: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range snap.Pools {
			batch.Queue(`
				INSERT INTO farm_pools (
					pool_id, stake_token, weight, last_accrual_block, acc_reward_per_share,
					harvest_delay, total_staked, reward_token_staked
				) VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7::text::numeric, $8::text::numeric)
			`,
				p.ID,
				p.StakeToken.Hex(),
				int64(p.Weight),
				int64(p.LastAccrualBlock),
				numeric(p.AccRewardPerShare),
				p.HarvestDelay,
				numeric(p.TotalStaked),
				numeric(p.RewardTokenStakedHere),
			)
		}
		for _, pos := range snap.Positions {
			batch.Queue(`
				INSERT INTO farm_positions (
					pool_id, holder, amount, reward_debt, last_deposit_time, carried_unpaid, auto_compounded
				) VALUES ($1, $2, $3::text::numeric, $4::text::numeric, $5, $6::text::numeric, $7::text::numeric)
			`,
				pos.PoolID,
				pos.Holder,
				numeric(pos.Amount),
				numeric(pos.RewardDebt),
				pos.LastDepositTime,
				numeric(pos.CarriedUnpaid),
				numeric(pos.AutoCompounded),
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert pools and positions: %w", err)
			}
		}
		return nil
	})
}

// LoadFarmState returns the stored farm snapshot. Returns ErrNotFound before the first save.
func (s *StateStore) LoadFarmState(ctx context.Context) (_ *domain.FarmSnapshot, err error) {
	defer observe("load_farm_state", time.Now(), &err)

	var (
		snap                   domain.FarmSnapshot
		block, weight, feeBips int64
		staked, perBlock       string
	)
	err = s.pool.QueryRow(ctx, `
		SELECT block, total_alloc_weight, total_reward_token_staked::text, last_top_up_time,
			paused, fee_bips, fee_recipient, reward_per_block::text, admin, pauser, auto_compounder
		FROM farm_state
		WHERE id = 1
	`).Scan(&block, &weight, &staked, &snap.LastTopUpTime, &snap.Paused, &feeBips, &snap.FeeRecipient, &perBlock,
		&snap.Admin, &snap.Pauser, &snap.AutoCompounder)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get farm state: %w", err)
	}
	snap.Block = uint64(block)
	snap.TotalAllocWeight = uint64(weight)
	snap.FeeBips = uint64(feeBips)
	if snap.TotalRewardTokenStaked, err = parseNumeric("total_reward_token_staked", staked); err != nil {
		return nil, err
	}
	if snap.RewardPerBlock, err = parseNumeric("reward_per_block", perBlock); err != nil {
		return nil, err
	}

	if snap.Pools, err = s.loadPools(ctx); err != nil {
		return nil, err
	}
	if snap.Positions, err = s.loadPositions(ctx); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *StateStore) loadPools(ctx context.Context) ([]domain.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, stake_token, weight, last_accrual_block, acc_reward_per_share::text,
			harvest_delay, total_staked::text, reward_token_staked::text
		FROM farm_pools
		ORDER BY pool_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		var (
			p                      domain.Pool
			stakeToken             string
			weight, last           int64
			acc, total, rewardHere string
		)
		if err := rows.Scan(&p.ID, &stakeToken, &weight, &last, &acc, &p.HarvestDelay, &total, &rewardHere); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		p.StakeToken = common.HexToAddress(stakeToken)
		p.Weight = uint64(weight)
		p.LastAccrualBlock = uint64(last)
		if p.AccRewardPerShare, err = parseNumeric("acc_reward_per_share", acc); err != nil {
			return nil, err
		}
		if p.TotalStaked, err = parseNumeric("total_staked", total); err != nil {
			return nil, err
		}
		if p.RewardTokenStakedHere, err = parseNumeric("reward_token_staked", rewardHere); err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}

func (s *StateStore) loadPositions(ctx context.Context) ([]domain.PositionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, holder, amount::text, reward_debt::text, last_deposit_time,
			carried_unpaid::text, auto_compounded::text
		FROM farm_positions
		ORDER BY pool_id ASC, holder ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionRecord
	for rows.Next() {
		var (
			rec                            domain.PositionRecord
			amt, debt, carried, compounded string
		)
		if err := rows.Scan(&rec.PoolID, &rec.Holder, &amt, &debt, &rec.LastDepositTime, &carried, &compounded); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if rec.Amount, err = parseNumeric("amount", amt); err != nil {
			return nil, err
		}
		if rec.RewardDebt, err = parseNumeric("reward_debt", debt); err != nil {
			return nil, err
		}
		if rec.CarriedUnpaid, err = parseNumeric("carried_unpaid", carried); err != nil {
			return nil, err
		}
		if rec.AutoCompounded, err = parseNumeric("auto_compounded", compounded); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return out, nil
}

// SaveEscrowState replaces the stored escrow snapshot in one transaction.
func (s *StateStore) SaveEscrowState(ctx context.Context, snap *domain.EscrowSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	return s.pool.inTx(ctx, "save_escrow_state", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO escrow_state (
				id, last_accrual_time, current_rate, accrued_unsent, recipient, owner, max_per_call, updated_at
			) VALUES (1, $1, $2::text::numeric, $3::text::numeric, $4, $5, $6::text::numeric, now())
			ON CONFLICT (id) DO UPDATE SET
				last_accrual_time = EXCLUDED.last_accrual_time,
				current_rate = EXCLUDED.current_rate,
				accrued_unsent = EXCLUDED.accrued_unsent,
				recipient = EXCLUDED.recipient,
				owner = EXCLUDED.owner,
				max_per_call = EXCLUDED.max_per_call,
				updated_at = now()
		`,
			snap.State.LastAccrualTime,
			numeric(snap.State.CurrentRatePerSecond),
			numeric(snap.State.AccruedUnsent),
			snap.Recipient,
			snap.Owner,
			numeric(snap.MaxPerCall),
		)
		if err != nil {
			return fmt.Errorf("upsert escrow state: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM escrow_schedule`); err != nil {
			return fmt.Errorf("clear schedule: %w", err)
		}
		for i, rc := range snap.Schedule {
			_, err := tx.Exec(ctx, `
				INSERT INTO escrow_schedule (position, effective_at, rate_per_second)
				VALUES ($1, $2, $3::text::numeric)
			`, i, rc.EffectiveAt, numeric(rc.RatePerSecond))
			if err != nil {
				return fmt.Errorf("insert schedule entry %d: %w", i, err)
			}
		}
		return nil
	})
}

// LoadEscrowState returns the stored escrow snapshot. Returns ErrNotFound before the first save.
func (s *StateStore) LoadEscrowState(ctx context.Context) (_ *domain.EscrowSnapshot, err error) {
	defer observe("load_escrow_state", time.Now(), &err)

	var (
		snap                   domain.EscrowSnapshot
		rate, accrued, maxCall string
	)
	err = s.pool.QueryRow(ctx, `
		SELECT last_accrual_time, current_rate::text, accrued_unsent::text, recipient, owner, max_per_call::text
		FROM escrow_state
		WHERE id = 1
	`).Scan(&snap.State.LastAccrualTime, &rate, &accrued, &snap.Recipient, &snap.Owner, &maxCall)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get escrow state: %w", err)
	}
	if snap.State.CurrentRatePerSecond, err = parseNumeric("current_rate", rate); err != nil {
		return nil, err
	}
	if snap.State.AccruedUnsent, err = parseNumeric("accrued_unsent", accrued); err != nil {
		return nil, err
	}
	if snap.MaxPerCall, err = parseNumeric("max_per_call", maxCall); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT effective_at, rate_per_second::text
		FROM escrow_schedule
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rc  domain.RateChange
			txt string
		)
		if err := rows.Scan(&rc.EffectiveAt, &txt); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		if rc.RatePerSecond, err = parseNumeric("rate_per_second", txt); err != nil {
			return nil, err
		}
		snap.Schedule = append(snap.Schedule, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule: %w", err)
	}
	return &snap, nil
}
