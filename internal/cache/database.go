package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// DatabaseStore keeps counters in the primary SQL database so every API replica shares them.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed store.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("cache: db is required")
	}
	return &DatabaseStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// WithClock replaces the time source, for tests.
func (s *DatabaseStore) WithClock(clock func() time.Time) *DatabaseStore {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Increment implements Counter. The window starts with the first hit and is not extended by
// later hits.
func (s *DatabaseStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now()
	var (
		count  int64
		expiry time.Time
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&entry, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			count, expiry = 1, now.Add(window)
			return tx.Create(&models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: expiry,
			}).Error
		}
		if err != nil {
			return err
		}

		if !entry.ExpiresAt.After(now) {
			count, expiry = 1, now.Add(window)
		} else {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count, expiry = current+1, entry.ExpiresAt
		}

		return tx.Model(&models.CacheEntry{}).
			Where("key = ?", key).
			Updates(map[string]any{
				"value":      []byte(strconv.FormatInt(count, 10)),
				"expires_at": expiry,
			}).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return count, expiry.Sub(now), nil
}

// PurgeExpired implements Purger.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
