// SPDX-License-Identifier: BSD-3-Clause

package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btmgrd/btadapterd/pkg/core"
)

func TestAdapterTable_GetOrCreateIsLazyAndStable(t *testing.T) {
	table := core.NewAdapterTable()

	_, ok := table.Get(0)
	require.False(t, ok)

	a1 := table.GetOrCreate(0)
	a2 := table.GetOrCreate(0)
	require.Same(t, a1, a2, "GetOrCreate must return the same instance for an already-known index")
	require.Equal(t, 0, a1.HCI)
}

func TestAdapterTable_LowestPresentIgnoresOrderOfInsertion(t *testing.T) {
	table := core.NewAdapterTable()
	table.GetOrCreate(5).Present = true
	table.GetOrCreate(1).Present = false
	table.GetOrCreate(3).Present = true

	lowest, ok := table.LowestPresent()
	require.True(t, ok)
	require.Equal(t, 3, lowest)
}

func TestAdapterTable_LowestPresentEmptyTable(t *testing.T) {
	table := core.NewAdapterTable()
	_, ok := table.LowestPresent()
	require.False(t, ok)

	table.GetOrCreate(0)
	_, ok = table.LowestPresent()
	require.False(t, ok, "a known but not-present adapter is not a candidate")
}

func TestAdapterTable_SnapshotAllIsOrderedAndClonedPerHCI(t *testing.T) {
	ctx := context.Background()
	table := core.NewAdapterTable()
	table.GetOrCreate(2).Present = true
	table.GetOrCreate(0).ConfigEnabled = true
	table.GetOrCreate(1)

	snaps := table.SnapshotAll(ctx)
	require.Len(t, snaps, 3)
	require.Equal(t, []int{0, 1, 2}, []int{snaps[0].HCI, snaps[1].HCI, snaps[2].HCI})
	require.True(t, snaps[0].ConfigEnabled)
	require.True(t, snaps[2].Present)
}
