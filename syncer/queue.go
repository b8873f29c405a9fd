// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package syncer

import (
	"sync"

	"github.com/ZaparooProject/go-lynx"
	"github.com/google/uuid"
)

// DefaultQueueCapacity is the number of events held while the link is down.
const DefaultQueueCapacity = 256

// Queue is a bounded FIFO of access events. When full, Enqueue drops the
// oldest event so the newest telemetry always survives. It is safe for
// concurrent use and never blocks.
type Queue struct {
	events   []lynx.AccessEvent
	capacity int
	dropped  uint64
	mu       sync.Mutex
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		events:   make([]lynx.AccessEvent, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends ev, dropping the oldest event on overflow.
func (q *Queue) Enqueue(ev lynx.AccessEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == q.capacity {
		copy(q.events, q.events[1:])
		q.events = q.events[:len(q.events)-1]
		q.dropped++
	}
	q.events = append(q.events, ev)
}

// Peek returns copies of up to n of the oldest events without removing them.
func (q *Queue) Peek(n int) []lynx.AccessEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n = min(n, len(q.events))
	if n <= 0 {
		return nil
	}
	out := make([]lynx.AccessEvent, n)
	copy(out, q.events[:n])
	return out
}

// Ack removes the events with the given IDs. Unknown IDs are ignored, so
// acknowledging twice is harmless.
func (q *Queue) Ack(ids []uuid.UUID) int {
	if len(ids) == 0 {
		return 0
	}
	acked := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		acked[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0]
	for _, ev := range q.events {
		if _, ok := acked[ev.ID]; !ok {
			kept = append(kept, ev)
		}
	}
	removed := len(q.events) - len(kept)
	clear(q.events[len(kept):])
	q.events = kept
	return removed
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns how many events were discarded on overflow.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
