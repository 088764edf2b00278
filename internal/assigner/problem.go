package assigner

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// ErrSessionNotFound: 指定的考试周期不存在
var ErrSessionNotFound = errors.New("考试周期不存在")

// Source: 构建问题实例所需的数据来源，由 repository 实现
type Source interface {
	SessionMetadata(sessionID int64) (*domain.ExamSession, error)
	Teachers() ([]*domain.Teacher, error)
	SessionTeachers(sessionID int64) ([]*domain.SessionTeacher, error)
	GradePriorities() (map[string]int32, error)
	Unavailabilities(sessionID int64) ([]*domain.Unavailability, error)
	ExamsForAssignment(sessionID int64) ([]*domain.Exam, error)
}

// ProblemTeacher: 参加本周期监考的教师，按下标寻址
type ProblemTeacher struct {
	ID        int64
	FullName  string
	Email     string
	GradeCode string
	Quota     int32
	Priority  int32 // 数值越小越优先保护，越晚被松弛
}

// LogicalExam: 去重后的逻辑考场，求解器的分配单元
// 原始行按 (day, slot, room) 分组，同组的出题教师取并集
type LogicalExam struct {
	Day                 int32
	Slot                int32
	Room                string
	RequiredSupervisors int32
	OwnerIDs            []int64
	ExamDate            time.Time
	StartTime           string
	EndTime             string
}

// Problem: 一次分配的内存问题实例
type Problem struct {
	Session  *domain.ExamSession
	Teachers []ProblemTeacher
	Exams    []LogicalExam

	// Unavailable[t][day-1][slot-1] 为 true 表示教师 t 拒绝该时段
	// 求解过程中只读，松弛通过单独的集合表达，不修改矩阵本身
	Unavailable [][][]bool

	teacherIndex map[int64]int
}

// TeacherIndex 返回教师 ID 对应的下标，不存在时返回 -1
func (p *Problem) TeacherIndex(teacherID int64) int {
	idx, ok := p.teacherIndex[teacherID]
	if !ok {
		return -1
	}
	return idx
}

// IsUnavailable 判断教师 t 是否拒绝考场 e 所在的时段
func (p *Problem) IsUnavailable(t, e int) bool {
	exam := &p.Exams[e]
	return p.Unavailable[t][exam.Day-1][exam.Slot-1]
}

// LoadProblem 从数据来源组装问题实例
// 只读取数据，不产生任何写入
func LoadProblem(src Source, sessionID int64) (*Problem, error) {
	session, err := src.SessionMetadata(sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%d", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	teachers, err := src.Teachers()
	if err != nil {
		return nil, err
	}

	sessionTeachers, err := src.SessionTeachers(sessionID)
	if err != nil {
		return nil, err
	}

	priorities, err := src.GradePriorities()
	if err != nil {
		return nil, err
	}

	// 只保留报名参加且在职的教师，不参加的教师不会产生任何决策变量
	enrollment := make(map[int64]*domain.SessionTeacher)
	for _, st := range sessionTeachers {
		enrollment[st.TeacherID] = st
	}

	problem := &Problem{
		Session:      session,
		teacherIndex: make(map[int64]int),
	}

	for _, teacher := range teachers {
		st, ok := enrollment[teacher.ID]
		if !ok || !st.Participates || !teacher.IsActive {
			continue
		}

		priority, ok := priorities[teacher.GradeCode]
		if !ok {
			// 优先级表里缺失的职称按最不受保护处理，最先被松弛
			slog.Warn("职称缺少优先级配置", "gradeCode", teacher.GradeCode, "teacherID", teacher.ID)
			priority = 999
		}

		problem.teacherIndex[teacher.ID] = len(problem.Teachers)
		problem.Teachers = append(problem.Teachers, ProblemTeacher{
			ID:        teacher.ID,
			FullName:  teacher.FullName,
			Email:     teacher.Email,
			GradeCode: teacher.GradeCode,
			Quota:     st.Quota,
			Priority:  priority,
		})
	}

	// 构建不可用矩阵
	unavailabilities, err := src.Unavailabilities(sessionID)
	if err != nil {
		return nil, err
	}

	problem.Unavailable = make([][][]bool, len(problem.Teachers))
	for t := range problem.Unavailable {
		problem.Unavailable[t] = make([][]bool, session.NumDays)
		for d := range problem.Unavailable[t] {
			problem.Unavailable[t][d] = make([]bool, session.SlotsPerDay)
		}
	}

	for _, u := range unavailabilities {
		t, ok := problem.teacherIndex[u.TeacherID]
		if !ok {
			// 不参加监考的教师也可能提交过不可用时段，直接忽略
			continue
		}
		if u.Day < 1 || u.Day > session.NumDays || u.Slot < 1 || u.Slot > session.SlotsPerDay {
			slog.Warn("不可用时段超出周期范围", "teacherID", u.TeacherID, "day", u.Day, "slot", u.Slot)
			continue
		}
		problem.Unavailable[t][u.Day-1][u.Slot-1] = true
	}

	// 将原始考试行按 (day, slot, room) 去重成逻辑考场
	rows, err := src.ExamsForAssignment(sessionID)
	if err != nil {
		return nil, err
	}

	problem.Exams = groupExams(rows)

	return problem, nil
}

type examKey struct {
	day  int32
	slot int32
	room string
}

// groupExams 将原始行分组去重
// 同一逻辑考场可能按科目或出题教师出现多行，出题教师取并集；
// 同组内监考人数不一致属于数据质量问题，以第一行为准并告警
func groupExams(rows []*domain.Exam) []LogicalExam {
	grouped := make(map[examKey]*LogicalExam)
	order := make([]examKey, 0)

	for _, row := range rows {
		key := examKey{day: row.Day, slot: row.Slot, room: row.Room}

		exam, exists := grouped[key]
		if !exists {
			exam = &LogicalExam{
				Day:                 row.Day,
				Slot:                row.Slot,
				Room:                row.Room,
				RequiredSupervisors: row.RequiredSupervisors,
				ExamDate:            row.ExamDate,
				StartTime:           row.StartTime,
				EndTime:             row.EndTime,
			}
			grouped[key] = exam
			order = append(order, key)
		} else if exam.RequiredSupervisors != row.RequiredSupervisors {
			slog.Warn("同一考场的监考人数不一致，以首行为准",
				"day", row.Day, "slot", row.Slot, "room", row.Room,
				"kept", exam.RequiredSupervisors, "ignored", row.RequiredSupervisors)
		}

		if row.OwnerID != nil {
			exam.OwnerIDs = append(exam.OwnerIDs, *row.OwnerID)
		}
	}

	// 按时间和考场排序，保证同一份数据总是得到同一个模型
	sort.Slice(order, func(i, j int) bool {
		if order[i].day != order[j].day {
			return order[i].day < order[j].day
		}
		if order[i].slot != order[j].slot {
			return order[i].slot < order[j].slot
		}
		return order[i].room < order[j].room
	})

	exams := make([]LogicalExam, 0, len(order))
	for _, key := range order {
		exam := grouped[key]
		exam.OwnerIDs = lo.Uniq(exam.OwnerIDs)
		exams = append(exams, *exam)
	}

	return exams
}
