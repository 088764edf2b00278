package assigner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func TestLoadProblemFiltersRoster(t *testing.T) {
	src := newTestSource(1, 2)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.addTeacher(3, "张磊", "助教", 2)
	src.addTeacher(4, "陈芳", "副教授", 2)

	// 教师 2 不参加，教师 3 已离职
	src.enrollments[1].Participates = false
	src.teachers[2].IsActive = false

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	require.Len(t, p.Teachers, 2)
	assert.Equal(t, int64(1), p.Teachers[0].ID)
	assert.Equal(t, int64(4), p.Teachers[1].ID)

	// 没有参加的教师不占下标
	assert.Equal(t, -1, p.TeacherIndex(2))
	assert.Equal(t, -1, p.TeacherIndex(3))
	assert.Equal(t, 1, p.TeacherIndex(4))
}

func TestLoadProblemMissingGradePriority(t *testing.T) {
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "特聘研究员", 2)

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	// 优先级表中缺失的职称按最不受保护处理
	require.Len(t, p.Teachers, 1)
	assert.Equal(t, int32(999), p.Teachers[0].Priority)
}

func TestLoadProblemIgnoresOutOfRangeUnavailability(t *testing.T) {
	src := newTestSource(2, 2)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addUnavailability(1, 1, 1)
	src.addUnavailability(1, 5, 1) // 超出周期范围
	src.addUnavailability(1, 1, 9) // 超出周期范围
	src.addUnavailability(2, 1, 1) // 不在名册中的教师

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	assert.True(t, p.Unavailable[0][0][0])
	count := 0
	for _, day := range p.Unavailable[0] {
		for _, refused := range day {
			if refused {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoadProblemSessionNotFound(t *testing.T) {
	src := newTestSource(1, 1)

	_, err := LoadProblem(src, 99)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGroupExamsDeduplicates(t *testing.T) {
	owner1, owner2 := int64(11), int64(12)

	// 同一个考场按科目拆成三行，出题教师有重复
	rows := []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", &owner1, 2),
		examRow(1, 1, "A101", "线性代数", &owner2, 2),
		examRow(1, 1, "A101", "概率论", &owner1, 2),
		examRow(1, 2, "A101", "大学物理", nil, 1),
	}

	exams := groupExams(rows)
	require.Len(t, exams, 2)

	assert.Equal(t, int32(1), exams[0].Slot)
	assert.Equal(t, int32(2), exams[0].RequiredSupervisors)
	assert.ElementsMatch(t, []int64{owner1, owner2}, exams[0].OwnerIDs)

	assert.Equal(t, int32(2), exams[1].Slot)
	assert.Empty(t, exams[1].OwnerIDs)
}

func TestGroupExamsKeepsFirstOnMismatch(t *testing.T) {
	rows := []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 2),
		examRow(1, 1, "A101", "线性代数", nil, 3), // 监考人数不一致
	}

	exams := groupExams(rows)
	require.Len(t, exams, 1)
	assert.Equal(t, int32(2), exams[0].RequiredSupervisors)
}

func TestGroupExamsDeterministicOrder(t *testing.T) {
	rows := []*domain.Exam{
		examRow(2, 1, "B203", "大学物理", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
		examRow(1, 1, "C305", "高等数学", nil, 1),
		examRow(1, 1, "A101", "概率论", nil, 1),
	}

	exams := groupExams(rows)
	require.Len(t, exams, 4)
	assert.Equal(t, "A101", exams[0].Room)
	assert.Equal(t, "C305", exams[1].Room)
	assert.Equal(t, int32(2), exams[2].Slot)
	assert.Equal(t, int32(2), exams[3].Day)
}

func TestIsUnavailable(t *testing.T) {
	src := newTestSource(1, 2)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addUnavailability(1, 1, 2)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
	}

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	assert.False(t, p.IsUnavailable(0, 0))
	assert.True(t, p.IsUnavailable(0, 1))
}

var _ Source = (*fakeSource)(nil)
var _ Sink = (*fakeSink)(nil)
