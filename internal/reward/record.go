package reward

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/giftstream/giftstream/internal/ledger"
)

// Kind is the business event that minted tokens.
type Kind string

const (
	KindGift Kind = "gift"
	KindCall Kind = "call"
)

// Record is the immutable audit row of one distribution. It is written
// before the first credit and never updated.
type Record struct {
	EventKey       string
	Kind           Kind
	SpenderID      string
	BeneficiaryID  string
	AgencyID       string
	AdminID        string
	Gross          int64
	SourceCurrency ledger.Currency
	MintRate       decimal.Decimal
	TotalTokens    int64
	Shares         []Share
	Undistributed  int64
	CreatedAt      time.Time
}

// Store persists distribution records keyed by event key.
type Store interface {
	// Create fails with ErrDuplicateEvent when the key exists.
	Create(ctx context.Context, rec Record) error
	// Get fails with ErrEventNotFound for an unknown key.
	Get(ctx context.Context, eventKey string) (Record, error)
	// ListByAccount returns records where the account spent or received,
	// newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]Record, error)
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore builds an in-memory record store for tests and development.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.EventKey]; exists {
		return ErrDuplicateEvent
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Shares = append([]Share(nil), rec.Shares...)
	s.records[rec.EventKey] = rec
	return nil
}

func (s *memoryStore) Get(_ context.Context, eventKey string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[eventKey]
	if !ok {
		return Record{}, ErrEventNotFound
	}
	rec.Shares = append([]Share(nil), rec.Shares...)
	return rec, nil
}

func (s *memoryStore) ListByAccount(_ context.Context, accountID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.SpenderID == accountID || rec.BeneficiaryID == accountID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
