//go:build windows

package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairPIDRecycling_ZeroesStaleParent(t *testing.T) {
	byPID := map[uint32]*Info{
		100: {PID: 100, ParentPID: 50, CreationTime: 1000},
		// pid 50 was recycled: its current holder was created *after* 100.
		50: {PID: 50, ParentPID: 0, CreationTime: 2000},
	}

	repairPIDRecycling(byPID)

	assert.Equal(t, uint32(0), byPID[100].ParentPID, "stale parent link must be zeroed")
	assert.Equal(t, uint32(0), byPID[50].ParentPID)
}

func TestRepairPIDRecycling_KeepsValidParent(t *testing.T) {
	byPID := map[uint32]*Info{
		100: {PID: 100, ParentPID: 50, CreationTime: 2000},
		50:  {PID: 50, ParentPID: 0, CreationTime: 1000},
	}

	repairPIDRecycling(byPID)

	assert.Equal(t, uint32(50), byPID[100].ParentPID)
}

func TestRepairPIDRecycling_MissingParentIsLeftAlone(t *testing.T) {
	byPID := map[uint32]*Info{
		100: {PID: 100, ParentPID: 999, CreationTime: 2000},
	}

	repairPIDRecycling(byPID)

	assert.Equal(t, uint32(999), byPID[100].ParentPID)
}

func TestRepairPIDRecycling_ZeroParentIsNoop(t *testing.T) {
	byPID := map[uint32]*Info{
		100: {PID: 100, ParentPID: 0, CreationTime: 2000},
	}

	repairPIDRecycling(byPID)

	assert.Equal(t, uint32(0), byPID[100].ParentPID)
}
