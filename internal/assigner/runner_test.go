package assigner

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

type fakeSource struct {
	session          *domain.ExamSession
	teachers         []*domain.Teacher
	enrollments      []*domain.SessionTeacher
	priorities       map[string]int32
	unavailabilities []*domain.Unavailability
	exams            []*domain.Exam
}

func (f *fakeSource) SessionMetadata(sessionID int64) (*domain.ExamSession, error) {
	if f.session == nil || f.session.ID != sessionID {
		return nil, sql.ErrNoRows
	}
	return f.session, nil
}

func (f *fakeSource) Teachers() ([]*domain.Teacher, error) {
	return f.teachers, nil
}

func (f *fakeSource) SessionTeachers(sessionID int64) ([]*domain.SessionTeacher, error) {
	return f.enrollments, nil
}

func (f *fakeSource) GradePriorities() (map[string]int32, error) {
	return f.priorities, nil
}

func (f *fakeSource) Unavailabilities(sessionID int64) ([]*domain.Unavailability, error) {
	return f.unavailabilities, nil
}

func (f *fakeSource) ExamsForAssignment(sessionID int64) ([]*domain.Exam, error) {
	return f.exams, nil
}

type fakeSink struct {
	calls       []string
	saved       []*domain.Assignment
	credits     map[int64]int32
	deactivated int64
}

func (f *fakeSink) DeactivateAssignments(sessionID int64) error {
	f.calls = append(f.calls, "deactivate")
	f.deactivated = sessionID
	return nil
}

func (f *fakeSink) SaveAssignments(assignments []*domain.Assignment) error {
	f.calls = append(f.calls, "save")
	f.saved = assignments
	return nil
}

func (f *fakeSink) UpdateRolloverCredit(teacherID int64, credit int32) error {
	if f.credits == nil {
		f.credits = make(map[int64]int32)
	}
	f.credits[teacherID] = credit
	return nil
}

func testDate(day int32) time.Time {
	return time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(day-1))
}

func examRow(day, slot int32, room, subject string, ownerID *int64, required int32) *domain.Exam {
	return &domain.Exam{
		SessionID:           1,
		Day:                 day,
		Slot:                slot,
		Room:                room,
		Subject:             subject,
		OwnerID:             ownerID,
		RequiredSupervisors: required,
		ExamDate:            testDate(day),
		StartTime:           "08:30:00",
		EndTime:             "10:30:00",
	}
}

func newTestSource(numDays, slotsPerDay int32) *fakeSource {
	return &fakeSource{
		session: &domain.ExamSession{
			ID:          1,
			Label:       "测试周期",
			NumDays:     numDays,
			SlotsPerDay: slotsPerDay,
		},
		priorities: map[string]int32{"教授": 1, "副教授": 2, "讲师": 3, "助教": 4},
	}
}

func (f *fakeSource) addTeacher(id int64, fullName, gradeCode string, quota int32) {
	f.teachers = append(f.teachers, &domain.Teacher{
		ID:        id,
		FullName:  fullName,
		GradeCode: gradeCode,
		IsActive:  true,
	})
	f.enrollments = append(f.enrollments, &domain.SessionTeacher{
		SessionID:    1,
		TeacherID:    id,
		Participates: true,
		Quota:        quota,
	})
}

func (f *fakeSource) addUnavailability(teacherID int64, day, slot int32) {
	f.unavailabilities = append(f.unavailabilities, &domain.Unavailability{
		SessionID: 1,
		TeacherID: teacherID,
		Day:       day,
		Slot:      slot,
	})
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.TimeBudget = 5 * time.Second
	opts.ExtendedTimeBudget = 10 * time.Second
	return opts
}

func TestExecuteAssignmentCoversAllExams(t *testing.T) {
	src := newTestSource(2, 3)
	src.addTeacher(1, "王伟", "教授", 4)
	src.addTeacher(2, "李娟", "讲师", 4)
	src.addTeacher(3, "张磊", "助教", 4)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 2),
		examRow(1, 2, "A101", "线性代数", nil, 1),
		examRow(2, 1, "B203", "大学物理", nil, 2),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	assert.Len(t, result.Exams, 3)
	for _, exam := range result.Exams {
		assert.Len(t, exam.Teachers, int(exam.RequiredSupervisors))
	}
	assert.Equal(t, int32(5), result.Meta.TotalAssignments)
	assert.True(t, result.Meta.Optimal)
}

func TestExecuteAssignmentRespectsQuota(t *testing.T) {
	src := newTestSource(1, 3)
	src.addTeacher(1, "王伟", "教授", 1)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
		examRow(1, 3, "A101", "概率论", nil, 1),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	for _, w := range result.Workloads {
		assert.LessOrEqual(t, w.Assigned, w.Quota, "教师 %d 超出配额", w.TeacherID)
	}
}

func TestExecuteAssignmentExcludesOwner(t *testing.T) {
	owner := int64(1)
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", &owner, 1),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	require.Len(t, result.Exams, 1)
	require.Len(t, result.Exams[0].Teachers, 1)
	assert.Equal(t, int64(2), result.Exams[0].Teachers[0].TeacherID)
}

func TestExecuteAssignmentNoDoubleBooking(t *testing.T) {
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	// 同一时段两个考场，每场一人，必须两位教师各占一场
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 1, "B203", "大学物理", nil, 1),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	seen := make(map[int64]int)
	for _, exam := range result.Exams {
		for _, teacher := range exam.Teachers {
			seen[teacher.TeacherID]++
		}
	}
	for teacherID, count := range seen {
		assert.Equal(t, 1, count, "教师 %d 在同一时段被安排了多个考场", teacherID)
	}
}

func TestExecuteAssignmentHonorsUnavailability(t *testing.T) {
	src := newTestSource(1, 2)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.addUnavailability(1, 1, 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	assert.Zero(t, result.Meta.RelaxedTeachers)
	for _, exam := range result.Exams {
		if exam.Day == 1 && exam.Slot == 1 {
			for _, teacher := range exam.Teachers {
				assert.NotEqual(t, int64(1), teacher.TeacherID)
			}
		}
	}
}

func TestExecuteAssignmentCapacityPrecheck(t *testing.T) {
	src := newTestSource(1, 2)
	src.addTeacher(1, "王伟", "教授", 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 2),
		examRow(1, 2, "A101", "线性代数", nil, 2),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusInfeasible, result.Status)
	assert.Equal(t, int32(3), result.CapacityDeficit)
	// 容量不足时一次求解尝试都不应该发生
	assert.Zero(t, result.Meta.SolveAttempts)
	assert.Contains(t, result.Message, "配额总量不足")
}

func TestExecuteAssignmentRelaxesUnavailability(t *testing.T) {
	// 唯一的教师拒绝了唯一的时段，严格求解不可行，
	// 松弛后才能覆盖考场
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "助教", 1)
	src.addUnavailability(1, 1, 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
	}

	sink := &fakeSink{}
	runner := NewRunner(src, sink, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, int32(1), result.Meta.RelaxedTeachers)
	assert.GreaterOrEqual(t, result.Meta.RelaxationRounds, int32(1))
	// 相对原始问题不再是最优解
	assert.False(t, result.Meta.Optimal)
	assert.Contains(t, result.Message, "松弛")

	// 被违反的不可用时段不计入顺延配额
	require.Len(t, result.Workloads, 1)
	assert.Zero(t, result.Workloads[0].HonoredUnavailabilities)
}

func TestExecuteAssignmentRelaxesBothTeachers(t *testing.T) {
	// 唯一的考场要两名监考，仅有的两位教师都拒绝了该时段，
	// 只松弛一位仍然凑不齐人，必须两位都松弛
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "讲师", 1)
	src.addTeacher(2, "李娟", "讲师", 1)
	src.addUnavailability(1, 1, 1)
	src.addUnavailability(2, 1, 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 2),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, int32(2), result.Meta.RelaxedTeachers)
	assert.GreaterOrEqual(t, result.Meta.RelaxationRounds, int32(2))
	assert.False(t, result.Meta.Optimal)

	require.Len(t, result.Workloads, 2)
	for _, w := range result.Workloads {
		assert.Equal(t, int32(1), w.Assigned)
		assert.Zero(t, w.HonoredUnavailabilities)
	}
}

func TestExecuteAssignmentInfeasibleAfterAllRelaxation(t *testing.T) {
	// 出题教师是唯一的候选人，归属排除导致无论怎么松弛都无解
	owner := int64(1)
	src := newTestSource(1, 1)
	src.addTeacher(1, "王伟", "教授", 1)
	src.addUnavailability(1, 1, 1)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", &owner, 1),
	}

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	assert.Equal(t, StatusInfeasible, result.Status)
	assert.Positive(t, result.Meta.SolveAttempts)
}

func TestExecuteAssignmentSessionNotFound(t *testing.T) {
	src := newTestSource(1, 1)

	runner := NewRunner(src, nil, testOptions())
	result := <-runner.ExecuteAssignment(42, DefaultConfig())

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Message, "考试周期不存在")
}

func TestExecuteAssignmentPersistsThroughSink(t *testing.T) {
	src := newTestSource(1, 2)
	src.addTeacher(1, "王伟", "教授", 2)
	src.addTeacher(2, "李娟", "讲师", 2)
	src.addUnavailability(2, 1, 2)
	src.exams = []*domain.Exam{
		examRow(1, 1, "A101", "高等数学", nil, 1),
		examRow(1, 2, "A101", "线性代数", nil, 1),
	}

	sink := &fakeSink{}
	runner := NewRunner(src, sink, testOptions())
	result := <-runner.ExecuteAssignment(1, DefaultConfig())

	require.Equal(t, StatusSuccess, result.Status)
	// 先作废旧结果，再插入新行
	require.Equal(t, []string{"deactivate", "save"}, sink.calls)
	assert.Equal(t, int64(1), sink.deactivated)
	require.Len(t, sink.saved, 2)
	for _, row := range sink.saved {
		assert.True(t, row.IsActive)
		assert.Equal(t, int64(1), row.SessionID)
	}

	// 教师 2 的不可用时段被尊重，计入顺延配额
	assert.Equal(t, int32(1), sink.credits[2])
}

func TestWorkloadByTeacherID(t *testing.T) {
	result := &Result{
		Workloads: []TeacherWorkload{
			{TeacherID: 7, Assigned: 2},
			{TeacherID: 9, Assigned: 1},
		},
	}

	byID := result.WorkloadByTeacherID()
	require.Len(t, byID, 2)
	assert.Equal(t, int32(2), byID[7].Assigned)
	assert.Equal(t, int32(1), byID[9].Assigned)
}

func TestRelaxationQueueOrder(t *testing.T) {
	src := newTestSource(1, 3)
	src.addTeacher(1, "王伟", "教授", 2) // 优先级 1，最受保护
	src.addTeacher(2, "李娟", "助教", 2) // 优先级 4，最先被松弛
	src.addTeacher(3, "张磊", "讲师", 2) // 优先级 3
	src.addTeacher(4, "陈芳", "助教", 2) // 优先级 4，但可释放的时段更多
	src.addUnavailability(1, 1, 1)
	src.addUnavailability(2, 1, 1)
	src.addUnavailability(3, 1, 2)
	src.addUnavailability(4, 1, 1)
	src.addUnavailability(4, 1, 3)

	p, err := LoadProblem(src, 1)
	require.NoError(t, err)

	queue := relaxationQueue(p)
	require.Len(t, queue, 4)

	// 优先级数值大的在前，同优先级再看可释放时段数
	assert.Equal(t, int64(4), p.Teachers[queue[0]].ID)
	assert.Equal(t, int64(2), p.Teachers[queue[1]].ID)
	assert.Equal(t, int64(3), p.Teachers[queue[2]].ID)
	assert.Equal(t, int64(1), p.Teachers[queue[3]].ID)
}

func TestBatchSizeGrowsWithRounds(t *testing.T) {
	// 100 人的队列按 5% 起步
	assert.Equal(t, 5, batchSize(100, 1, 5))
	assert.Equal(t, 5, batchSize(100, 3, 5))
	assert.Equal(t, 10, batchSize(100, 4, 5))
	assert.Equal(t, 10, batchSize(100, 7, 5))
	assert.Equal(t, 20, batchSize(100, 8, 5))

	// 小队列至少推进一人
	assert.Equal(t, 1, batchSize(3, 1, 5))
}
