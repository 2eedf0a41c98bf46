package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/registraction/vip-services/internal/vipsvc/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `idvip, COALESCE(code, ''), COALESCE(cellulare, ''), COALESCE(nascita, ''),
        COALESCE(nome, ''), COALESCE(cognome, ''), COALESCE(email, ''), COALESCE(indirizzo, ''),
        COALESCE(citta, ''), COALESCE(prov, ''), COALESCE(cap, ''), stato`

type SlotStore struct {
	db *pgxpool.Pool
}

func NewSlotStore(db *pgxpool.Pool) *SlotStore {
	return &SlotStore{db: db}
}

type AssignInput struct {
	Phone      string
	BirthDate  string
	FirstName  string
	LastName   string
	Email      string
	Address    string
	City       string
	Province   string
	PostalCode string
}

// PoolStats holds the availability counters of one store pool.
type PoolStats struct {
	Available int64 `json:"available"`
	Assigned  int64 `json:"assigned"`
}

// PhoneExists reports whether the phone already owns an assigned card in
// the pool. The same normalized digits are used here and in Assign.
func (s *SlotStore) PhoneExists(ctx context.Context, pool, phone string) (bool, error) {
	if err := ValidatePoolTable(pool); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
        SELECT EXISTS (
            SELECT 1 FROM %s WHERE cellulare = $1 AND stato = $2
        )
    `, pool)

	var exists bool
	err := s.db.QueryRow(ctx, query, phone, models.SlotAssigned).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check phone in pool %s: %w", pool, err)
	}

	return exists, nil
}

// Assign hands the lowest-numbered free card of the pool to the phone in
// one conditional update: the candidate row is picked and flipped to
// assigned in the same statement, guarded against the phone already
// holding a card. Locked candidates are skipped so two concurrent
// registrations never race for the same row. A zero-row result is
// classified as ErrPhoneTaken or ErrPoolExhausted inside the same
// transaction.
func (s *SlotStore) Assign(ctx context.Context, pool string, in AssignInput) (*models.CardSlot, error) {
	if err := ValidatePoolTable(pool); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin assign tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := fmt.Sprintf(`
        WITH candidate AS (
            SELECT idvip FROM %[1]s
            WHERE stato = $10
            ORDER BY idvip ASC
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        UPDATE %[1]s v
        SET cellulare = $1, nascita = $2, nome = $3, cognome = $4, email = $5,
            indirizzo = $6, citta = $7, prov = $8, cap = $9, stato = $11
        FROM candidate c
        WHERE v.idvip = c.idvip
          AND NOT EXISTS (
              SELECT 1 FROM %[1]s WHERE cellulare = $1 AND stato = $11
          )
        RETURNING v.idvip, COALESCE(v.code, ''), COALESCE(v.cellulare, ''), COALESCE(v.nascita, ''),
            COALESCE(v.nome, ''), COALESCE(v.cognome, ''), COALESCE(v.email, ''), COALESCE(v.indirizzo, ''),
            COALESCE(v.citta, ''), COALESCE(v.prov, ''), COALESCE(v.cap, ''), v.stato
    `, pool)

	slot := &models.CardSlot{}
	err = tx.QueryRow(ctx, query,
		in.Phone, in.BirthDate, in.FirstName, in.LastName, in.Email,
		in.Address, in.City, in.Province, in.PostalCode,
		models.SlotAvailable, models.SlotAssigned,
	).Scan(
		&slot.ID, &slot.Code, &slot.Phone, &slot.BirthDate,
		&slot.FirstName, &slot.LastName, &slot.Email, &slot.Address,
		&slot.City, &slot.Province, &slot.PostalCode, &slot.State,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			reason := s.classifyMiss(ctx, tx, pool, in.Phone)
			_ = tx.Rollback(ctx)
			err = nil
			return nil, reason
		}
		return nil, fmt.Errorf("assign slot in pool %s: %w", pool, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit assign tx: %w", err)
	}

	return slot, nil
}

// classifyMiss decides why the conditional update touched no row.
func (s *SlotStore) classifyMiss(ctx context.Context, tx pgx.Tx, pool, phone string) error {
	var taken bool
	query := fmt.Sprintf(`
        SELECT EXISTS (
            SELECT 1 FROM %s WHERE cellulare = $1 AND stato = $2
        )
    `, pool)
	if err := tx.QueryRow(ctx, query, phone, models.SlotAssigned).Scan(&taken); err != nil {
		return fmt.Errorf("classify failed assignment in pool %s: %w", pool, err)
	}
	if taken {
		return ErrPhoneTaken
	}
	return ErrPoolExhausted
}

// GetSlot fetches one pool row by its identifier.
func (s *SlotStore) GetSlot(ctx context.Context, pool string, id int64) (*models.CardSlot, error) {
	if err := ValidatePoolTable(pool); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE idvip = $1
        LIMIT 1
    `, slotColumns, pool)

	slot := &models.CardSlot{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&slot.ID, &slot.Code, &slot.Phone, &slot.BirthDate,
		&slot.FirstName, &slot.LastName, &slot.Email, &slot.Address,
		&slot.City, &slot.Province, &slot.PostalCode, &slot.State,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot %d from pool %s: %w", id, pool, err)
	}

	return slot, nil
}

// PoolStats counts free and handed-out cards in the pool.
func (s *SlotStore) PoolStats(ctx context.Context, pool string) (PoolStats, error) {
	if err := ValidatePoolTable(pool); err != nil {
		return PoolStats{}, err
	}

	query := fmt.Sprintf(`
        SELECT
            COUNT(*) FILTER (WHERE stato = $1),
            COUNT(*) FILTER (WHERE stato = $2)
        FROM %s
    `, pool)

	var stats PoolStats
	err := s.db.QueryRow(ctx, query, models.SlotAvailable, models.SlotAssigned).Scan(
		&stats.Available,
		&stats.Assigned,
	)
	if err != nil {
		return PoolStats{}, fmt.Errorf("pool stats for %s: %w", pool, err)
	}

	return stats, nil
}
