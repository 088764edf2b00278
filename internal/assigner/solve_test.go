package assigner

import (
	"testing"
	"time"

	"github.com/crillab/gophersat/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func newSolveTestModel(t *testing.T) *model {
	t.Helper()

	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
	}

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	cfg := DefaultConfig()
	return buildModel(p, &cfg, nil)
}

// 预算耗尽而求解器没有吐出任何可行解时必须报告超时，
// 不允许继续等待求解器自行返回
func TestBudgetExpiredWithoutModelTimesOut(t *testing.T) {
	m := newSolveTestModel(t)

	outcome := m.budgetExpired(nil, 2*time.Second)

	assert.Equal(t, solveTimedOut, outcome.status)
	assert.Nil(t, outcome.model)
	assert.Equal(t, 2*time.Second, outcome.duration)
}

func TestBudgetExpiredKeepsBestModel(t *testing.T) {
	m := newSolveTestModel(t)

	mm := make([]bool, m.nextVar-1)
	mm[m.assignVar(0, 0)-1] = true
	best := &solver.Result{Status: solver.Sat, Model: mm, Weight: 7}

	outcome := m.budgetExpired(best, time.Second)

	require.Equal(t, solveSolved, outcome.status)
	assert.False(t, outcome.optimal)
	assert.Equal(t, 7, outcome.weight)
	assert.True(t, m.assigned(outcome.model, 0, 0))
}

func TestClassifyIndetWithModelIsNonOptimal(t *testing.T) {
	m := newSolveTestModel(t)

	mm := make([]bool, m.nextVar-1)
	mm[m.assignVar(0, 0)-1] = true
	best := &solver.Result{Status: solver.Sat, Model: mm, Weight: 3}

	outcome := m.classify(solver.Result{Status: solver.Indet}, best, time.Second)

	require.Equal(t, solveSolved, outcome.status)
	assert.False(t, outcome.optimal)
	assert.True(t, m.assigned(outcome.model, 0, 0))
}

func TestClassifyUnsatWithoutModelIsInfeasible(t *testing.T) {
	m := newSolveTestModel(t)

	outcome := m.classify(solver.Result{Status: solver.Unsat}, nil, time.Second)

	assert.Equal(t, solveInfeasible, outcome.status)
}

// 求解器返回的真值数组可能比我们的变量总数短（比如没有辅助变量的实例），
// 映射时越界的部分一律按 false 处理
func TestExtractModelToleratesShortModel(t *testing.T) {
	m := newSolveTestModel(t)

	short := []bool{true}
	values := m.extractModel(short)

	require.Len(t, values, m.nextVar-1)
	assert.True(t, values[0])
	for _, v := range values[1:] {
		assert.False(t, v)
	}
}
