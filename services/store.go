package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"topup-system/internal/status"
	"topup-system/models"

	"github.com/redis/go-redis/v9"
)

// PendingStore keeps in-flight transactions in Redis so they survive the
// external payment redirect round-trip (and process restarts) and expire on
// their own when the payer never returns.
type PendingStore struct {
	Redis *redis.Client
	ttl   time.Duration
}

func NewPendingStore(redisClient *redis.Client, ttl time.Duration) *PendingStore {
	return &PendingStore{
		Redis: redisClient,
		ttl:   ttl,
	}
}

func pendingKey(id string) string {
	return fmt.Sprintf("topup:pending:%s", id)
}

func guardKey(vertical models.Vertical, customerAccountNumber string) string {
	return fmt.Sprintf("topup:initiating:%s:%s", vertical, customerAccountNumber)
}

// Put stores the transaction under its id with the configured TTL.
func (s *PendingStore) Put(ctx context.Context, tx *models.PendingTransaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("store.Put: json.Marshal: %w", err)
	}

	if err := s.Redis.Set(ctx, pendingKey(tx.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store.Put: redis.Set: %w", err)
	}
	return nil
}

// Get returns the transaction for id, or ErrTransactionNotFound.
func (s *PendingStore) Get(ctx context.Context, id string) (*models.PendingTransaction, error) {
	data, err := s.Redis.Get(ctx, pendingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: redis.Get: %w", err)
	}

	var tx models.PendingTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("store.Get: json.Unmarshal: %w", err)
	}
	return &tx, nil
}

// Take atomically removes and returns the transaction for id. Of two
// concurrent callbacks for the same id, exactly one gets the record; the
// other sees ErrTransactionNotFound. This is what keeps vend execution
// at-most-once.
func (s *PendingStore) Take(ctx context.Context, id string) (*models.PendingTransaction, error) {
	data, err := s.Redis.GetDel(ctx, pendingKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Take: redis.GetDel: %w", err)
	}

	var tx models.PendingTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("store.Take: json.Unmarshal: %w", err)
	}
	return &tx, nil
}

// Claim grabs the per-account initiation guard. It returns false when another
// transaction for the same vertical and account is still pending, so a
// double-submitted form cannot create two provider trx ids.
func (s *PendingStore) Claim(ctx context.Context, vertical models.Vertical, customerAccountNumber, id string) (bool, error) {
	ok, err := s.Redis.SetNX(ctx, guardKey(vertical, customerAccountNumber), id, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store.Claim: redis.SetNX: %w", err)
	}
	return ok, nil
}

// Release frees the initiation guard after the transaction reached a terminal
// state (or initiation failed partway).
func (s *PendingStore) Release(ctx context.Context, vertical models.Vertical, customerAccountNumber string) error {
	if err := s.Redis.Del(ctx, guardKey(vertical, customerAccountNumber)).Err(); err != nil {
		return fmt.Errorf("store.Release: redis.Del: %w", err)
	}
	return nil
}
