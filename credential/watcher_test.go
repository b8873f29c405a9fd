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

package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[credential]]\ntag_id = \"A1B2C3D4\"\npermission = \"allow\"\n"), 0o600))

	store := NewStore()
	w, err := NewWatcher(path, store, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Reload(context.Background()))
	assert.Equal(t, 1, store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	updated := sampleFile
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool { return store.Len() == 3 }, 2*time.Second, 10*time.Millisecond)

	// A broken file keeps the current set.
	require.NoError(t, os.WriteFile(path, []byte("[[credential]\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, store.Len())
	assert.False(t, store.Lookup(lynx.TagID{0xFF, 0xFF, 0xFF, 0xFF}, time.Now()).Granted)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o600))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
