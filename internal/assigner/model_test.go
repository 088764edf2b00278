package assigner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func TestNoGapsHardForbidsIdleMiddleSlot(t *testing.T) {
	src := newTestSource(1, 3)
	src.addTeacher(1, "王伟", "教授", 3)
	src.addTeacher(2, "李娟", "讲师", 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
		examRow(1, 3, "A101", "概率论", nil, 1),
	}

	cfg := DefaultConfig()
	cfg.NoGaps = ModeHard

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, cfg)

	require.Equal(t, StatusSuccess, result.Status)

	slotsByTeacher := make(map[int64][]int32)
	for _, exam := range result.Exams {
		for _, teacher := range exam.Teachers {
			slotsByTeacher[teacher.TeacherID] = append(slotsByTeacher[teacher.TeacherID], exam.Slot)
		}
	}

	// 每位教师当天的监考场次必须连续，不允许上了又空再上
	for teacherID, slots := range slotsByTeacher {
		if len(slots) < 2 {
			continue
		}
		min, max := slots[0], slots[0]
		for _, slot := range slots {
			if slot < min {
				min = slot
			}
			if slot > max {
				max = slot
			}
		}
		assert.Equal(t, int(max-min)+1, len(slots), "教师 %d 的安排存在空档: %v", teacherID, slots)
	}
}

func TestEqualByGradeBalancesWorkload(t *testing.T) {
	src := newTestSource(4, 1)
	src.addTeacher(1, "王伟", "讲师", 3)
	src.addTeacher(2, "李娟", "讲师", 3)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(2, 1, "A101", "线性代数", nil, 1),
		examRow(3, 1, "A101", "概率论", nil, 1),
		examRow(4, 1, "A101", "大学物理", nil, 1),
	}

	cfg := DefaultConfig()
	cfg.EqualByGrade = ModeHard
	cfg.NoGaps = ModeDisabled

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, cfg)

	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Workloads, 2)
	// 同职称同配额的两位教师必须平分 4 场
	assert.Equal(t, int32(2), result.Workloads[0].Assigned)
	assert.Equal(t, int32(2), result.Workloads[1].Assigned)
}

func TestOwnerPresenceHardKeepsOwnerInSlot(t *testing.T) {
	owner := int64(1)
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", &owner, 1),
		examRow(1, 1, "B203", "大学物理", nil, 1),
	}

	cfg := DefaultConfig()
	cfg.OwnerPresence = ModeHard

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, cfg)

	require.Equal(t, StatusSuccess, result.Status)
	// 出题教师必须留守同时段的另一个考场
	for _, exam := range result.Exams {
		require.Len(t, exam.Teachers, 1)
		if exam.Room == "B203" {
			assert.Equal(t, int64(1), exam.Teachers[0].TeacherID)
		} else {
			assert.Equal(t, int64(2), exam.Teachers[0].TeacherID)
		}
	}
}

func TestBuildModelCountsHardConstraints(t *testing.T) {
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
	}

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	cfg := DefaultConfig()
	m := buildModel(p, &cfg, nil)
	assert.Positive(t, m.hardCount)
	assert.Equal(t, int32(len(m.constrs)), m.hardCount)
}

func TestPresetConfig(t *testing.T) {
	cfg, err := PresetConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = PresetConfig("strict")
	require.NoError(t, err)
	assert.Equal(t, ModeHard, cfg.OwnerPresence)
	assert.Equal(t, ModeHard, cfg.NoGaps)
	assert.Equal(t, ModeHard, cfg.EqualByGrade)

	cfg, err = PresetConfig("relaxed")
	require.NoError(t, err)
	assert.Equal(t, ModeDisabled, cfg.OwnerPresence)
	assert.Equal(t, ModeDisabled, cfg.NoGaps)

	cfg, err = PresetConfig("fairness-optimized")
	require.NoError(t, err)
	assert.Equal(t, ModeHard, cfg.EqualByGrade)

	_, err = PresetConfig("nonsense")
	assert.Error(t, err)
}
