package utils

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// ValidateSlotWithinSession 检查 (day, slot) 是否落在周期的时间网格内
func ValidateSlotWithinSession(session *domain.ExamSession, day, slot int32) error {
	if day < 1 || day > session.NumDays {
		return fmt.Errorf("考试日 %d 超出周期范围（1-%d）", day, session.NumDays)
	}
	if slot < 1 || slot > session.SlotsPerDay {
		return fmt.Errorf("场次 %d 超出周期范围（1-%d）", slot, session.SlotsPerDay)
	}
	return nil
}

// ValidateExamTimes 检查考试开始和结束时间的格式及先后关系
func ValidateExamTimes(startTime, endTime string) error {
	start, err := time.Parse("15:04:05", startTime)
	if err != nil {
		return fmt.Errorf("开始时间格式错误: %s", startTime)
	}
	end, err := time.Parse("15:04:05", endTime)
	if err != nil {
		return fmt.Errorf("结束时间格式错误: %s", endTime)
	}
	if !end.After(start) {
		return fmt.Errorf("结束时间 %s 必须晚于开始时间 %s", endTime, startTime)
	}
	return nil
}
