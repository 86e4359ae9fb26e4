package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/buildr-network/pointsbot/models"
)

// MemoryStore is a thread-safe in-memory Store with the same version-CAS
// semantics as the MySQL implementation. It backs tests and the "memory"
// storage driver for local development.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*models.Account
	checkins  map[string]*models.CheckinRecord
	bonuses   map[string]*models.ReferralBonus // keyed by referred ID
	intros    map[string]time.Time             // keyed by telegramID/topic
	nextAcct  uint
	nextCheck uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*models.Account),
		checkins: make(map[string]*models.CheckinRecord),
		bonuses:  make(map[string]*models.ReferralBonus),
		intros:   make(map[string]time.Time),
	}
}

func (m *MemoryStore) GetAccount(ctx context.Context, telegramID string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.accounts[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *MemoryStore) GetCheckin(ctx context.Context, telegramID string) (*models.CheckinRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.checkins[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) TopAccounts(ctx context.Context, n int) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ranked := make([]models.Account, 0, len(m.accounts))
	for _, acct := range m.accounts {
		ranked = append(ranked, *acct)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Balance != ranked[j].Balance {
			return ranked[i].Balance > ranked[j].Balance
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (m *MemoryStore) CountReferrals(ctx context.Context, telegramID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, acct := range m.accounts {
		if acct.ReferredBy != nil && *acct.ReferredBy == telegramID {
			count++
		}
	}
	return count, nil
}

// Commit validates every version under one lock, then applies all records.
// Either the whole mutation lands or none of it does.
func (m *MemoryStore) Commit(ctx context.Context, mut Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, acct := range mut.Accounts {
		if acct.ID == 0 {
			if _, exists := m.accounts[acct.TelegramID]; exists {
				return ErrConflict
			}
			continue
		}
		current, ok := m.accounts[acct.TelegramID]
		if !ok || current.Version != acct.Version {
			return ErrConflict
		}
	}
	for _, rec := range mut.Checkins {
		if rec.ID == 0 {
			if _, exists := m.checkins[rec.TelegramID]; exists {
				return ErrConflict
			}
			continue
		}
		current, ok := m.checkins[rec.TelegramID]
		if !ok || current.Version != rec.Version {
			return ErrConflict
		}
	}
	for _, bonus := range mut.Bonuses {
		if _, exists := m.bonuses[bonus.ReferredID]; exists {
			return ErrConflict
		}
	}

	now := time.Now()
	for _, acct := range mut.Accounts {
		if acct.ID == 0 {
			m.nextAcct++
			acct.ID = m.nextAcct
			acct.Version = 1
			if acct.CreatedAt.IsZero() {
				acct.CreatedAt = now
			}
			acct.UpdatedAt = now
		} else {
			acct.Version++
			acct.UpdatedAt = now
		}
		cp := *acct
		m.accounts[acct.TelegramID] = &cp
	}
	for _, rec := range mut.Checkins {
		if rec.ID == 0 {
			m.nextCheck++
			rec.ID = m.nextCheck
			rec.Version = 1
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			rec.UpdatedAt = now
		} else {
			rec.Version++
			rec.UpdatedAt = now
		}
		cp := *rec
		m.checkins[rec.TelegramID] = &cp
	}
	for _, bonus := range mut.Bonuses {
		if bonus.CreatedAt.IsZero() {
			bonus.CreatedAt = now
		}
		cp := *bonus
		m.bonuses[bonus.ReferredID] = &cp
	}
	return nil
}

func introKey(telegramID string, topicID int) string {
	return telegramID + "/" + strconv.Itoa(topicID)
}

func (m *MemoryStore) RecordIntroduction(ctx context.Context, telegramID string, topicID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := introKey(telegramID, topicID)
	if _, exists := m.intros[key]; !exists {
		m.intros[key] = at
	}
	return nil
}

func (m *MemoryStore) HasIntroduction(ctx context.Context, telegramID string, topicID int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.intros[introKey(telegramID, topicID)]
	return ok, nil
}
