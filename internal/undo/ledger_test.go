//go:build windows

package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendAndDrainLIFO(t *testing.T) {
	l := New()
	l.Append(Route, "r1")
	l.Append(Route, "r2")
	l.Append(Route, "r3")
	l.Append(Address, "a1")

	var drained []string
	l.Drain(func(k Kind, rec any) {
		drained = append(drained, k.String()+":"+rec.(string))
	})

	// Newest first within each kind.
	assert.Equal(t, []string{"address:a1", "route:r3", "route:r2", "route:r1"}, drained)
	assert.Zero(t, l.Len(Route))
	assert.Zero(t, l.Len(Address))
}

func TestRemoveMatching(t *testing.T) {
	l := New()
	l.Append(WINS, "tun0")
	l.Append(WINS, "tun1")

	rec := l.RemoveMatching(WINS, func(rec any) bool { return rec.(string) == "tun0" })
	assert.Equal(t, "tun0", rec)
	assert.Equal(t, 1, l.Len(WINS))

	assert.Nil(t, l.RemoveMatching(WINS, func(rec any) bool { return rec.(string) == "tun0" }))
	assert.Equal(t, 1, l.Len(WINS))
}

func TestRemoveNewest(t *testing.T) {
	l := New()
	assert.Nil(t, l.RemoveNewest(WfpBlock))

	l.Append(WfpBlock, 1)
	l.Append(WfpBlock, 2)
	assert.Equal(t, 2, l.RemoveNewest(WfpBlock))
	assert.Equal(t, 1, l.RemoveNewest(WfpBlock))
	assert.Nil(t, l.RemoveNewest(WfpBlock))
}

func TestDrainEmpty(t *testing.T) {
	l := New()
	called := false
	l.Drain(func(Kind, any) { called = true })
	assert.False(t, called)
}

func TestKindStrings(t *testing.T) {
	for k := Kind(0); k < kindCount; k++ {
		assert.NotEqual(t, "unknown", k.String())
	}
}
