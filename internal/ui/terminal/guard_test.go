// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/jeranaias/ulm/internal/model"
)

type fakeOps struct {
	mu         sync.Mutex
	tty        bool
	getErr     error
	restoreErr error
	saved      *term.State
	restored   []*term.State
}

func (f *fakeOps) IsTerminal(int) bool { return f.tty }

func (f *fakeOps) GetState(int) (*term.State, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.saved = &term.State{}
	return f.saved, nil
}

func (f *fakeOps) Restore(_ int, st *term.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, st)
	return f.restoreErr
}

func (f *fakeOps) restoreCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.restored)
}

func newTestGuard(ops *fakeOps) *Guard {
	g := NewGuard(0, zap.NewNop())
	g.ops = ops
	g.exit = func(int) {}
	return g
}

func TestAcquire_NotATerminal(t *testing.T) {
	g := newTestGuard(&fakeOps{tty: false})
	err := g.Acquire()
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindTerminal))
	assert.False(t, g.Active())
}

func TestAcquire_GetStateFails(t *testing.T) {
	cause := errors.New("inappropriate ioctl")
	g := newTestGuard(&fakeOps{tty: true, getErr: cause})
	err := g.Acquire()
	assert.True(t, model.IsKind(err, model.KindTerminal))
	assert.ErrorIs(t, err, cause)
}

func TestRestore_Idempotent(t *testing.T) {
	ops := &fakeOps{tty: true}
	g := newTestGuard(ops)

	require.NoError(t, g.Acquire())
	require.NoError(t, g.Acquire())
	assert.True(t, g.Active())

	require.NoError(t, g.Restore())
	require.NoError(t, g.Restore())
	assert.Equal(t, 1, ops.restoreCount())
	assert.Same(t, ops.saved, ops.restored[0])
}

func TestProtect_RestoresOnReturn(t *testing.T) {
	ops := &fakeOps{tty: true}
	g := newTestGuard(ops)

	ran := false
	err := g.Protect(func() error {
		ran = true
		assert.True(t, g.Active(), "guard should be held while fn runs")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, g.Active())
	assert.Equal(t, 1, ops.restoreCount())
}

func TestProtect_RestoresOnError(t *testing.T) {
	ops := &fakeOps{tty: true}
	g := newTestGuard(ops)
	boom := errors.New("render failed")

	err := g.Protect(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ops.restoreCount())
}

func TestProtect_RestoresOnPanic(t *testing.T) {
	ops := &fakeOps{tty: true}
	g := newTestGuard(ops)

	assert.PanicsWithValue(t, "render loop crashed", func() {
		_ = g.Protect(func() error { panic("render loop crashed") })
	})
	assert.Equal(t, 1, ops.restoreCount())
	assert.False(t, g.Active())
}

func TestProtect_RestoreErrorIsTerminal(t *testing.T) {
	ops := &fakeOps{tty: true, restoreErr: errors.New("EIO")}
	g := newTestGuard(ops)

	err := g.Protect(func() error { return nil })
	assert.True(t, model.IsKind(err, model.KindTerminal))

	boom := errors.New("fn failed")
	err = g.Protect(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, model.IsKind(err, model.KindTerminal))
}

func TestProtect_AcquireFailureSkipsFn(t *testing.T) {
	g := newTestGuard(&fakeOps{tty: false})
	called := false
	err := g.Protect(func() error { called = true; return nil })
	assert.True(t, model.IsKind(err, model.KindTerminal))
	assert.False(t, called)
}

func TestRestoreAll(t *testing.T) {
	a, b := &fakeOps{tty: true}, &fakeOps{tty: true}
	ga, gb := newTestGuard(a), newTestGuard(b)
	require.NoError(t, ga.Acquire())
	require.NoError(t, gb.Acquire())
	require.NoError(t, gb.Restore())

	require.NoError(t, RestoreAll())
	assert.Equal(t, 1, a.restoreCount())
	assert.Equal(t, 1, b.restoreCount())
	assert.False(t, ga.Active())
}
