package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewSlot(t *testing.T) {
	t.Run("empty slot peeks nil", func(t *testing.T) {
		var slot PreviewSlot
		assert.Nil(t, slot.Peek())
	})

	t.Run("install releases the superseded artifact", func(t *testing.T) {
		var slot PreviewSlot

		first := &Artifact{Data: []byte("v1"), DraftVersion: 1}
		slot.Install(first)

		second := &Artifact{Data: []byte("v2"), DraftVersion: 2}
		slot.Install(second)

		assert.Nil(t, first.Data, "superseded artifact must drop its payload")
		got := slot.Peek()
		require.NotNil(t, got)
		assert.Equal(t, []byte("v2"), got.Data)
		assert.Equal(t, uint64(2), got.DraftVersion)
	})

	t.Run("clear releases and empties the slot", func(t *testing.T) {
		var slot PreviewSlot

		a := &Artifact{Data: []byte("v1"), DraftVersion: 1}
		slot.Install(a)
		slot.Clear()

		assert.Nil(t, a.Data)
		assert.Nil(t, slot.Peek())

		// Clearing an empty slot is a no-op.
		slot.Clear()
	})

	t.Run("staleness is visible through the draft version", func(t *testing.T) {
		var slot PreviewSlot
		slot.Install(&Artifact{Data: []byte("v1"), DraftVersion: 3})

		got := slot.Peek()
		require.NotNil(t, got)
		assert.NotEqual(t, uint64(4), got.DraftVersion)
	})
}

func TestPreviewSlotTeardown(t *testing.T) {
	t.Run("install after clear releases the artifact immediately", func(t *testing.T) {
		var slot PreviewSlot
		slot.Clear()

		late := &Artifact{Data: []byte("late"), DraftVersion: 9}
		slot.Install(late)

		assert.Nil(t, late.Data, "a cleared slot must not accept new artifacts")
		assert.Nil(t, slot.Peek())
	})

	t.Run("peeked view survives a concurrent clear", func(t *testing.T) {
		var slot PreviewSlot
		slot.Install(&Artifact{Data: []byte("v1"), DraftVersion: 1})

		got := slot.Peek()
		require.NotNil(t, got)

		slot.Clear()

		assert.Equal(t, []byte("v1"), got.Data, "the view must not lose its bytes to the release")
	})
}
