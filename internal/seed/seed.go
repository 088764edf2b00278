package seed

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/repository"
)

// 默认的职称保护优先级，数值越小越优先保护
var defaultGradePriorities = map[string]int32{
	"教授":  1,
	"副教授": 2,
	"讲师":  3,
	"助教":  4,
}

func readCSV(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		record := make(map[string]string)
		for i, value := range row {
			record[headers[i]] = value
		}
		records = append(records, record)
	}

	return records, nil
}

// SeedRealData 从教务导出的 CSV 文件中导入一个完整的考试周期：
// 教师名册、报名配额、考试安排和职称优先级
func SeedRealData(r *repository.Repository) {
	// 职称优先级
	for gradeCode, priority := range defaultGradePriorities {
		gp := &domain.GradePriority{GradeCode: gradeCode, Priority: priority}
		if err := r.UpsertGradePriority(gp); err != nil {
			slog.Error("插入职称优先级失败", "gradeCode", gradeCode, "error", err)
			return
		}
	}

	// 教师名册，列: 姓名, 邮箱, 职称, 配额
	teacherRecords, err := readCSV("./internal/seed/data/teachers.csv")
	if err != nil {
		slog.Error("读取教师名册失败", "error", err)
		return
	}

	// 考试安排，列: 考试日, 场次, 考场, 科目, 出题教师, 监考人数, 考试日期, 开始时间, 结束时间
	examRecords, err := readCSV("./internal/seed/data/exams.csv")
	if err != nil {
		slog.Error("读取考试安排失败", "error", err)
		return
	}

	// 先扫一遍考试安排，推断周期的天数和每天的场次数
	var numDays, slotsPerDay int32
	for _, record := range examRecords {
		day, err := strconv.Atoi(record["考试日"])
		if err != nil {
			slog.Error("考试日格式错误", "record", record)
			return
		}
		slot, err := strconv.Atoi(record["场次"])
		if err != nil {
			slog.Error("场次格式错误", "record", record)
			return
		}
		if int32(day) > numDays {
			numDays = int32(day)
		}
		if int32(slot) > slotsPerDay {
			slotsPerDay = int32(slot)
		}
	}

	if numDays == 0 || slotsPerDay == 0 {
		slog.Error("考试安排为空，无法推断周期结构")
		return
	}

	session := &domain.ExamSession{
		Label:       "2025春季学期期末考试",
		Description: "导入自教务处导出的考试安排表",
		NumDays:     numDays,
		SlotsPerDay: slotsPerDay,
	}
	if err := r.CreateExamSession(session); err != nil {
		slog.Error("插入考试周期失败", "error", err)
		return
	}

	// 插入教师并登记报名配额
	teacherIDs := make(map[string]int64)
	for _, record := range teacherRecords {
		fullName := record["姓名"]
		if fullName == "" {
			slog.Error("教师名册中存在没有姓名的行", "record", record)
			continue
		}

		quota, err := strconv.Atoi(record["配额"])
		if err != nil {
			slog.Error("配额格式错误", "fullName", fullName, "record", record)
			continue
		}

		teacher := &domain.Teacher{
			FullName:  fullName,
			Email:     record["邮箱"],
			GradeCode: record["职称"],
			IsActive:  true,
		}
		if err := r.CreateTeacher(teacher); err != nil {
			slog.Error("插入教师失败", "fullName", fullName, "error", err)
			continue
		}
		teacherIDs[fullName] = teacher.ID

		enrollment := &domain.SessionTeacher{
			SessionID:    session.ID,
			TeacherID:    teacher.ID,
			Participates: quota > 0,
			Quota:        int32(quota),
		}
		if err := r.EnrollTeacher(enrollment); err != nil {
			slog.Error("登记报名信息失败", "fullName", fullName, "error", err)
			continue
		}
	}

	// 插入考试安排
	exams := make([]*domain.Exam, 0, len(examRecords))
	for _, record := range examRecords {
		day, _ := strconv.Atoi(record["考试日"])
		slot, _ := strconv.Atoi(record["场次"])

		required, err := strconv.Atoi(record["监考人数"])
		if err != nil {
			slog.Error("监考人数格式错误", "record", record)
			continue
		}

		examDate, err := time.Parse("2006-01-02", record["考试日期"])
		if err != nil {
			slog.Error("考试日期格式错误", "record", record)
			continue
		}

		var ownerID *int64
		if owner := record["出题教师"]; owner != "" {
			id, ok := teacherIDs[owner]
			if !ok {
				// 出题教师不在名册中时按无归属处理，不阻断导入
				slog.Warn("出题教师不在名册中", "owner", owner, "subject", record["科目"])
			} else {
				ownerID = &id
			}
		}

		exams = append(exams, &domain.Exam{
			SessionID:           session.ID,
			Day:                 int32(day),
			Slot:                int32(slot),
			Room:                record["考场"],
			Subject:             record["科目"],
			OwnerID:             ownerID,
			RequiredSupervisors: int32(required),
			ExamDate:            examDate,
			StartTime:           record["开始时间"],
			EndTime:             record["结束时间"],
		})
	}

	if err := r.InsertExams(exams); err != nil {
		slog.Error("插入考试安排失败", "error", err)
		return
	}

	slog.Info("插入数据完成", "teachers", len(teacherIDs), "exams", len(exams))
}
