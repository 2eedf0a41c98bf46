package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/registraction/vip-services/internal/vipsvc/models"
	"github.com/registraction/vip-services/internal/vipsvc/phone"
	"github.com/registraction/vip-services/internal/vipsvc/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrCaptchaRejected = errors.New("captcha rejected")

// Directory resolves store tokens to pool identities.
type Directory interface {
	ResolveToken(ctx context.Context, token string) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)
}

// SlotPool is the per-store card pool repository. Every call carries the
// pool identity resolved from the directory.
type SlotPool interface {
	PhoneExists(ctx context.Context, pool, phone string) (bool, error)
	Assign(ctx context.Context, pool string, in store.AssignInput) (*models.CardSlot, error)
	GetSlot(ctx context.Context, pool string, id int64) (*models.CardSlot, error)
	PoolStats(ctx context.Context, pool string) (store.PoolStats, error)
}

// BotFilter checks the client captcha challenge.
type BotFilter interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Registration carries the submitted customer fields. Phone is accepted
// raw and normalized here, so check-phone and register share one key.
type Registration struct {
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

type RegistrationService struct {
	directory Directory
	slots     SlotPool
	bots      BotFilter
}

func NewRegistrationService(directory Directory, slots SlotPool, bots BotFilter) *RegistrationService {
	return &RegistrationService{
		directory: directory,
		slots:     slots,
		bots:      bots,
	}
}

// Store resolves the directory entry for a registration token.
func (s *RegistrationService) Store(ctx context.Context, token string) (*models.Store, error) {
	return s.directory.ResolveToken(ctx, token)
}

// CheckPhone reports whether the normalized phone already holds a card in
// the store resolved from token.
func (s *RegistrationService) CheckPhone(ctx context.Context, token, rawPhone string) (bool, error) {
	st, err := s.directory.ResolveToken(ctx, token)
	if err != nil {
		return false, err
	}

	digits, err := phone.Validate(rawPhone)
	if err != nil {
		return false, err
	}

	return s.slots.PhoneExists(ctx, st.PoolTable, digits)
}

// Register runs the whole assignment flow: resolve the store, pass the
// bot filter, validate the phone, then hand out the lowest free card.
// Nothing is persisted before the assignment itself.
func (s *RegistrationService) Register(ctx context.Context, token, challenge, remoteIP string, reg Registration) (*models.CardSlot, error) {
	regID := uuid.NewString()

	st, err := s.directory.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	accepted, err := s.bots.Verify(ctx, challenge, remoteIP)
	if err != nil {
		return nil, fmt.Errorf("bot filter: %w", err)
	}
	if !accepted {
		log.Warnf("registration %s rejected by bot filter for store %s", regID, st.Token)
		return nil, ErrCaptchaRejected
	}

	digits, err := phone.Validate(reg.Phone)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.Assign(ctx, st.PoolTable, store.AssignInput{
		Phone:      digits,
		BirthDate:  reg.BirthDate,
		FirstName:  reg.FirstName,
		LastName:   reg.LastName,
		Email:      reg.Email,
		Address:    reg.Address,
		City:       reg.City,
		Province:   reg.Province,
		PostalCode: reg.PostalCode,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("registration %s assigned card %d (code %s) in store %s", regID, slot.ID, slot.Code, st.Token)
	return slot, nil
}

// GetCard returns an already-assigned slot for barcode re-rendering.
// Free slots are reported as not found so their codes stay private.
func (s *RegistrationService) GetCard(ctx context.Context, token string, id int64) (*models.CardSlot, error) {
	st, err := s.directory.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	slot, err := s.slots.GetSlot(ctx, st.PoolTable, id)
	if err != nil {
		return nil, err
	}
	if !slot.Assigned() {
		return nil, store.ErrSlotNotFound
	}

	return slot, nil
}

// StoreStatus is one directory entry with its pool counters.
type StoreStatus struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Available int64  `json:"available"`
	Assigned  int64  `json:"assigned"`
}

// PoolStatus lists every store with its availability counters.
func (s *RegistrationService) PoolStatus(ctx context.Context) ([]StoreStatus, error) {
	stores, err := s.directory.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]StoreStatus, 0, len(stores))
	for _, st := range stores {
		stats, err := s.slots.PoolStats(ctx, st.PoolTable)
		if err != nil {
			return nil, fmt.Errorf("stats for store %s: %w", st.Token, err)
		}
		statuses = append(statuses, StoreStatus{
			Token:     st.Token,
			Name:      st.Name,
			Active:    st.Active,
			Available: stats.Available,
			Assigned:  stats.Assigned,
		})
	}

	return statuses, nil
}
