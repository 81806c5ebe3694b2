// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"testing"
	"time"
)

func TestBufferBatchSizeFlush(t *testing.T) {
	b := NewBufferWithConfig(3, 1) // large interval, flush on size only
	b.Write("a")
	b.Write("b")

	if _, ok := b.Flush(); ok {
		t.Error("flushed below batch size")
	}

	b.Write("c")
	content, ok := b.Flush()
	if !ok || content != "abc" {
		t.Errorf("Flush = %q, %v", content, ok)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending = %d after flush", b.Pending())
	}
}

func TestBufferTimeFlush(t *testing.T) {
	b := NewBufferWithConfig(1000, 60)
	b.Write("slow")

	time.Sleep(time.Second/60 + 5*time.Millisecond)

	content, ok := b.Flush()
	if !ok || content != "slow" {
		t.Errorf("Flush = %q, %v", content, ok)
	}
}

func TestBufferForceFlush(t *testing.T) {
	b := NewBuffer()

	if _, ok := b.ForceFlush(); ok {
		t.Error("ForceFlush on empty buffer")
	}

	b.Write("tail")
	content, ok := b.ForceFlush()
	if !ok || content != "tail" {
		t.Errorf("ForceFlush = %q, %v", content, ok)
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer()
	b.Write("discard me")
	b.Reset()

	if _, ok := b.ForceFlush(); ok {
		t.Error("content survived Reset")
	}
}

func TestBufferConfigFallbacks(t *testing.T) {
	b := NewBufferWithConfig(-1, 500)
	if b.batchSize != defaultBatchSize {
		t.Errorf("batchSize = %d", b.batchSize)
	}
	if b.interval != time.Second/defaultMaxFPS {
		t.Errorf("interval = %v", b.interval)
	}
}
