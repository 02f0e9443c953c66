// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// AccumulatorCapacity bounds the aggregated assistant text for one turn.
	// Streams longer than this overflow and the turn is persisted truncated
	// at the last complete chunk.
	AccumulatorCapacity = 512 * 1024

	// mlockHeadroom covers memguard's guard pages and canary on top of the
	// data buffer when probing RLIMIT_MEMLOCK.
	mlockHeadroom = 16 * 1024
)

// =============================================================================
// Interface
// =============================================================================

// TokenAccumulator aggregates streamed chunks into the assistant text that
// gets persisted after a turn.
//
// # Description
//
// Chunks are hashed incrementally as they arrive, so Finalize can return a
// digest of the exact bytes the user saw without a second pass. Finalize and
// Destroy both wipe the underlying storage; the accumulator is single-use.
//
// # Thread Safety
//
// Implementations are safe for concurrent use, though a turn writes from a
// single goroutine in practice.
type TokenAccumulator interface {
	// Write appends one chunk. Returns an error on overflow or after the
	// accumulator has been finalized or destroyed.
	Write(chunk string) error

	// Finalize returns the aggregated text and its hex SHA-256 digest, then
	// wipes the buffer. Overflowed accumulators return what fit.
	Finalize() (text string, digest string, err error)

	// Destroy wipes the buffer without returning data. Idempotent.
	Destroy()
}

// =============================================================================
// Secure Memory Probe
// =============================================================================

var (
	secureMemoryOnce sync.Once
	mlockSufficient  bool
	mlockLimitKB     uint64
)

// initSecureMemory probes RLIMIT_MEMLOCK once per process. Assistant text can
// quote account-adjacent conversation, so the preferred storage is mlocked
// memory that never reaches swap.
func initSecureMemory() {
	secureMemoryOnce.Do(func() {
		var lim unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &lim); err != nil {
			slog.Warn("Could not read RLIMIT_MEMLOCK, using plain accumulators",
				"error", err,
			)
			return
		}
		mlockLimitKB = lim.Cur / 1024
		mlockSufficient = lim.Cur >= AccumulatorCapacity+mlockHeadroom
		if !mlockSufficient {
			slog.Warn("RLIMIT_MEMLOCK too low for locked accumulators, using plain memory",
				"limit_kb", mlockLimitKB,
				"required_kb", (AccumulatorCapacity+mlockHeadroom)/1024,
			)
		}
	})
}

// NewTokenAccumulator returns the best accumulator the host supports: a
// memguard-locked buffer when the mlock limit allows it, otherwise a plain
// heap buffer with best-effort zeroing. The plain fallback is logged once at
// probe time, not per turn.
func NewTokenAccumulator() TokenAccumulator {
	initSecureMemory()

	if !mlockSufficient {
		return newPlainAccumulator()
	}
	return newLockedAccumulator()
}

// =============================================================================
// Locked Implementation
// =============================================================================

// lockedAccumulator stores chunks in a memguard LockedBuffer: mlocked so the
// text never swaps to disk, guard-paged, and explicitly wiped on release.
type lockedAccumulator struct {
	id        string
	createdAt time.Time
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	hasher    hash.Hash
	overflow  bool
	released  bool
}

func newLockedAccumulator() TokenAccumulator {
	buf := memguard.NewBuffer(AccumulatorCapacity)
	if buf == nil {
		slog.Warn("memguard allocation failed, falling back to plain accumulator")
		return newPlainAccumulator()
	}
	return &lockedAccumulator{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		buffer:    buf,
		hasher:    sha256.New(),
	}
}

func (a *lockedAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return fmt.Errorf("accumulator %s already released", a.id)
	}
	if a.overflow {
		return fmt.Errorf("accumulator %s overflowed", a.id)
	}
	if a.offset+len(chunk) > AccumulatorCapacity {
		a.overflow = true
		return fmt.Errorf("accumulator overflow: %d bytes over capacity",
			a.offset+len(chunk)-AccumulatorCapacity)
	}

	copy(a.buffer.Bytes()[a.offset:], chunk)
	a.offset += len(chunk)
	a.hasher.Write([]byte(chunk))
	return nil
}

func (a *lockedAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return "", "", fmt.Errorf("accumulator %s already released", a.id)
	}

	text := string(a.buffer.Bytes()[:a.offset])
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.release()

	slog.Debug("Finalized locked accumulator",
		"accumulator_id", a.id,
		"bytes", len(text),
		"digest", digest[:12],
	)
	return text, digest, nil
}

func (a *lockedAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.release()
}

// release wipes the locked buffer. Caller holds the mutex.
func (a *lockedAccumulator) release() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.released = true
}

// =============================================================================
// Plain Implementation
// =============================================================================

// plainAccumulator is the fallback for hosts with a low mlock limit. Zeroing
// on release is best effort; the garbage collector may have copied the slice.
type plainAccumulator struct {
	id       string
	mu       sync.Mutex
	data     []byte
	hasher   hash.Hash
	overflow bool
	released bool
}

func newPlainAccumulator() TokenAccumulator {
	return &plainAccumulator{
		id:     uuid.New().String(),
		data:   make([]byte, 0, 4096),
		hasher: sha256.New(),
	}
}

func (a *plainAccumulator) Write(chunk string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return fmt.Errorf("accumulator %s already released", a.id)
	}
	if a.overflow {
		return fmt.Errorf("accumulator %s overflowed", a.id)
	}
	if len(a.data)+len(chunk) > AccumulatorCapacity {
		a.overflow = true
		return fmt.Errorf("accumulator overflow: %d bytes over capacity",
			len(a.data)+len(chunk)-AccumulatorCapacity)
	}

	a.data = append(a.data, chunk...)
	a.hasher.Write([]byte(chunk))
	return nil
}

func (a *plainAccumulator) Finalize() (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return "", "", fmt.Errorf("accumulator %s already released", a.id)
	}

	text := string(a.data)
	digest := hex.EncodeToString(a.hasher.Sum(nil))
	a.release()
	return text, digest, nil
}

func (a *plainAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.release()
}

func (a *plainAccumulator) release() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.released = true
}
