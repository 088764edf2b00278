package assigner

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

type slotRef struct {
	teacherID int64
	day       int32
	slot      int32
}

type fakeSwapStore struct {
	assignments map[int64]*domain.Assignment
	owners      map[examKey][]int64
	unavailable map[slotRef]bool
	exchanged   bool
}

func newFakeSwapStore() *fakeSwapStore {
	return &fakeSwapStore{
		assignments: make(map[int64]*domain.Assignment),
		owners:      make(map[examKey][]int64),
		unavailable: make(map[slotRef]bool),
	}
}

func (f *fakeSwapStore) addAssignment(id, teacherID int64, day, slot int32, room string) {
	f.assignments[id] = &domain.Assignment{
		ID:        id,
		SessionID: 1,
		TeacherID: teacherID,
		Day:       day,
		Slot:      slot,
		Room:      room,
		IsActive:  true,
	}
}

func (f *fakeSwapStore) GetAssignmentByID(id int64) (*domain.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (f *fakeSwapStore) ExamOwnerIDs(sessionID int64, day, slot int32, room string) ([]int64, error) {
	return f.owners[examKey{day: day, slot: slot, room: room}], nil
}

func (f *fakeSwapStore) IsTeacherUnavailable(sessionID, teacherID int64, day, slot int32) (bool, error) {
	return f.unavailable[slotRef{teacherID: teacherID, day: day, slot: slot}], nil
}

func (f *fakeSwapStore) HasOtherActiveAssignment(sessionID, teacherID int64, day, slot int32, excludeAssignmentID int64) (bool, error) {
	for _, a := range f.assignments {
		if a.ID == excludeAssignmentID || !a.IsActive {
			continue
		}
		if a.TeacherID == teacherID && a.Day == day && a.Slot == slot {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSwapStore) ExchangeAssignmentTeachers(a, b *domain.Assignment) error {
	f.exchanged = true
	f.assignments[a.ID].TeacherID, f.assignments[b.ID].TeacherID = b.TeacherID, a.TeacherID
	return nil
}

func TestSwapSucceeds(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.True(t, result.Swapped)
	assert.Empty(t, result.Violations)
	assert.True(t, store.exchanged)
	assert.Equal(t, int64(20), store.assignments[1].TeacherID)
	assert.Equal(t, int64(10), store.assignments[2].TeacherID)
}

func TestSwapRejectsOwnership(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")
	// 教师 10 是 B203 考场的出题教师
	store.owners[examKey{day: 1, slot: 2, room: "B203"}] = []int64{10}

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.False(t, result.Swapped)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, SwapRuleOwnership, result.Violations[0].Rule)
	assert.Equal(t, int64(10), result.Violations[0].TeacherID)
	assert.False(t, store.exchanged)
}

func TestSwapRejectsUnavailability(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 2, 1, "B203")
	// 教师 20 声明了第 1 天第 1 场不可用
	store.unavailable[slotRef{teacherID: 20, day: 1, slot: 1}] = true

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.False(t, result.Swapped)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, SwapRuleUnavailability, result.Violations[0].Rule)
	assert.Equal(t, int64(20), result.Violations[0].TeacherID)
}

func TestSwapRejectsConflict(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")
	// 教师 10 在第 1 天第 2 场已有另一个考场的任务
	store.addAssignment(3, 10, 1, 2, "C305")

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.False(t, result.Swapped)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, SwapRuleConflict, result.Violations[0].Rule)
	assert.Equal(t, int64(10), result.Violations[0].TeacherID)
}

func TestSwapCollectsBothDirections(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")
	store.owners[examKey{day: 1, slot: 2, room: "B203"}] = []int64{10}
	store.unavailable[slotRef{teacherID: 20, day: 1, slot: 1}] = true

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.False(t, result.Swapped)
	require.Len(t, result.Violations, 2)
	rules := []string{result.Violations[0].Rule, result.Violations[1].Rule}
	assert.ElementsMatch(t, []string{SwapRuleOwnership, SwapRuleUnavailability}, rules)
}

func TestSwapConflictExcludesLeavingRow(t *testing.T) {
	// 两个任务在同一时段，互换后各自空出的行不构成冲突
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 1, "B203")

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)

	assert.True(t, result.Swapped)
	assert.Empty(t, result.Violations)
}

func TestSwapRoundTripRestoresTeachers(t *testing.T) {
	// 换班是对称操作：换过去再换回来必须恢复原状
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 2, 2, "B203")

	result, err := Swap(store, 1, 2)
	require.NoError(t, err)
	require.True(t, result.Swapped)
	require.Equal(t, int64(20), store.assignments[1].TeacherID)
	require.Equal(t, int64(10), store.assignments[2].TeacherID)

	result, err = Swap(store, 1, 2)
	require.NoError(t, err)

	assert.True(t, result.Swapped)
	assert.Equal(t, int64(10), store.assignments[1].TeacherID)
	assert.Equal(t, int64(20), store.assignments[2].TeacherID)
}

func TestSwapAssignmentNotFound(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")

	_, err := Swap(store, 1, 99)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSwapInactiveAssignment(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")
	store.assignments[2].IsActive = false

	_, err := Swap(store, 1, 2)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSwapDifferentSessions(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 20, 1, 2, "B203")
	store.assignments[2].SessionID = 2

	_, err := Swap(store, 1, 2)
	assert.ErrorIs(t, err, ErrSwapDifferentSessions)
}

func TestSwapSameTeacher(t *testing.T) {
	store := newFakeSwapStore()
	store.addAssignment(1, 10, 1, 1, "A101")
	store.addAssignment(2, 10, 1, 2, "B203")

	_, err := Swap(store, 1, 2)
	assert.ErrorIs(t, err, ErrSwapSameTeacher)
}

var _ SwapStore = (*fakeSwapStore)(nil)
