// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package disambiguation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// =============================================================================
// Badger Fallback Store
// =============================================================================

// BadgerStore is the in-process fallback: an in-memory Badger database with
// the same TTL discipline as the Redis primary. It exists so a Redis outage
// does not lose the option list between the prompt and the user's very next
// reply.
type BadgerStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	// janitor runs value-log GC so expired entries are actually reclaimed,
	// not just hidden.
	stopJanitor chan struct{}
	janitorDone sync.WaitGroup
	closeOnce   sync.Once
}

// janitorInterval paces the expired-entry sweep.
const janitorInterval = 5 * time.Minute

// NewBadgerStore opens an in-memory Badger database and starts its janitor.
func NewBadgerStore(ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger fallback: %w", err)
	}
	s := &BadgerStore{
		db:          db,
		ttl:         ttl,
		logger:      logger.With("component", "disambiguation_fallback"),
		stopJanitor: make(chan struct{}),
	}
	s.janitorDone.Add(1)
	go s.runJanitor()
	return s, nil
}

func (s *BadgerStore) runJanitor() {
	defer s.janitorDone.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to reclaim.
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Debug("badger value log GC", "error", err)
			}
		case <-s.stopJanitor:
			return
		}
	}
}

// Get reads the pending state; expired entries read as absent.
func (s *BadgerStore) Get(_ context.Context, conversationKey string) (*datatypes.DisambiguationState, error) {
	var state *datatypes.DisambiguationState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(conversationKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var st datatypes.DisambiguationState
			if err := json.Unmarshal(val, &st); err != nil {
				return err
			}
			state = &st
			return nil
		})
	})
	if err != nil {
		return nil, &datatypes.DisambiguationStoreError{Op: "get", Message: err.Error()}
	}
	return state, nil
}

// Put overwrites the pending state with a fresh TTL.
func (s *BadgerStore) Put(_ context.Context, conversationKey string, state *datatypes.DisambiguationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return &datatypes.DisambiguationStoreError{Op: "put", Message: err.Error()}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(conversationKey), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return &datatypes.DisambiguationStoreError{Op: "put", Message: err.Error()}
	}
	return nil
}

// Delete clears the pending state.
func (s *BadgerStore) Delete(_ context.Context, conversationKey string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(conversationKey))
	})
	if err != nil {
		return &datatypes.DisambiguationStoreError{Op: "delete", Message: err.Error()}
	}
	return nil
}

// Ping always succeeds; the store is in-process.
func (s *BadgerStore) Ping(context.Context) error { return nil }

// Close stops the janitor and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopJanitor)
		s.janitorDone.Wait()
		err = s.db.Close()
	})
	return err
}

var _ Store = (*BadgerStore)(nil)
