// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

const (
	defaultBatchSize = 15
	defaultMaxFPS    = 30
)

// Buffer batches stream deltas for rendering. Deltas arrive on the
// controller's turn goroutine far faster than a terminal can redraw;
// the buffer accumulates them and releases a batch when either the
// batch size or the frame interval is reached. Flushing at most maxFPS
// times per second keeps streaming smooth without flicker.
type Buffer struct {
	mu         sync.Mutex
	pending    strings.Builder
	deltaCount int
	lastFlush  time.Time

	batchSize int
	interval  time.Duration
}

// NewBuffer creates a delta buffer with the default batch size (15)
// and frame cap (30 fps).
func NewBuffer() *Buffer {
	return NewBufferWithConfig(defaultBatchSize, defaultMaxFPS)
}

// NewBufferWithConfig creates a buffer with a custom batch size and
// frame cap. Out-of-range values fall back to the defaults.
func NewBufferWithConfig(batchSize, maxFPS int) *Buffer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = defaultMaxFPS
	}
	return &Buffer{
		batchSize: batchSize,
		interval:  time.Second / time.Duration(maxFPS),
		lastFlush: time.Now(),
	}
}

// Write adds a delta. Called from the turn goroutine.
func (b *Buffer) Write(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.WriteString(delta)
	b.deltaCount++
}

// Flush returns the accumulated content when a threshold is reached.
// Called from the Bubble Tea loop.
func (b *Buffer) Flush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending.Len() == 0 || !b.shouldFlushLocked() {
		return "", false
	}
	return b.drainLocked(), true
}

// ForceFlush drains everything regardless of thresholds, used when a
// stream finishes or is cancelled.
func (b *Buffer) ForceFlush() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending.Len() == 0 {
		return "", false
	}
	return b.drainLocked(), true
}

// Reset clears the buffer without flushing.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.Reset()
	b.deltaCount = 0
	b.lastFlush = time.Now()
}

// Pending returns the number of deltas waiting.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deltaCount
}

func (b *Buffer) shouldFlushLocked() bool {
	if b.deltaCount >= b.batchSize {
		return true
	}
	return time.Since(b.lastFlush) >= b.interval
}

func (b *Buffer) drainLocked() string {
	content := b.pending.String()
	b.pending.Reset()
	b.deltaCount = 0
	b.lastFlush = time.Now()
	return content
}
