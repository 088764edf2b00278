package domain

import "time"

// ExamSession: 一个考试周期（如某学期期末考试周）
type ExamSession struct {
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	NumDays     int32  `json:"numDays"`     // 考试天数
	SlotsPerDay int32  `json:"slotsPerDay"` // 每天的场次数，场次按时间先后编号

	// 不可用时段的登记截止时间，为空表示不限制
	RegistrationDeadline *time.Time `json:"registrationDeadline"`

	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// RegistrationOpen 判断当前是否仍允许登记或撤销不可用时段
func (s *ExamSession) RegistrationOpen(now time.Time) bool {
	return s.RegistrationDeadline == nil || now.Before(*s.RegistrationDeadline)
}
