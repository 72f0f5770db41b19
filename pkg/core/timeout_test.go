// SPDX-License-Identifier: BSD-3-Clause

package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btmgrd/btadapterd/pkg/core"
)

func TestCommandTimeout_SetAndCancel(t *testing.T) {
	ct := core.NewCommandTimeout(time.Hour, func(int) {})
	defer ct.Stop()

	require.False(t, ct.HasEntry(0))
	ct.SetNext(0)
	require.True(t, ct.HasEntry(0))
	ct.Cancel(0)
	require.False(t, ct.HasEntry(0))
}

func TestCommandTimeout_CancelIsIdempotentOnUnknownHCI(t *testing.T) {
	ct := core.NewCommandTimeout(time.Hour, func(int) {})
	defer ct.Stop()
	ct.Cancel(999) // must not panic
}

func TestCommandTimeout_ExpireReturnsOnlyPastDeadlines(t *testing.T) {
	ct := core.NewCommandTimeout(time.Hour, func(int) {})
	defer ct.Stop()

	ct.SetNext(0)
	ct.SetNext(1)

	require.Empty(t, ct.Expire(), "nothing should have expired yet with an hour-long duration")
	require.True(t, ct.HasEntry(0))
	require.True(t, ct.HasEntry(1))
}

func TestCommandTimeout_ExpireFiresOnExpiredEntriesAndReArms(t *testing.T) {
	fired := make(chan int, 4)
	ct := core.NewCommandTimeout(20*time.Millisecond, func(hci int) {
		fired <- hci
	})
	defer ct.Stop()

	ct.SetNext(0)
	ct.SetNext(1)

	select {
	case hci := <-fired:
		require.Contains(t, []int{0, 1}, hci)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first expiry")
	}

	select {
	case hci := <-fired:
		require.Contains(t, []int{0, 1}, hci)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second expiry")
	}

	require.False(t, ct.HasEntry(0))
	require.False(t, ct.HasEntry(1))
}

func TestCommandTimeout_CancelPreventsExpiry(t *testing.T) {
	fired := make(chan int, 1)
	ct := core.NewCommandTimeout(20*time.Millisecond, func(hci int) {
		fired <- hci
	})
	defer ct.Stop()

	ct.SetNext(0)
	ct.SetNext(1)
	ct.Cancel(0)

	select {
	case hci := <-fired:
		require.Equal(t, 1, hci)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry")
	}

	select {
	case hci := <-fired:
		t.Fatalf("unexpected second expiry for hci %d; hci 0 was cancelled", hci)
	case <-time.After(100 * time.Millisecond):
	}
}
