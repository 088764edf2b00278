package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// InsertExams 批量写入考试安排的原始行
// 通常对应一次导入，整体在一个事务内完成
func (r *Repository) InsertExams(exams []*domain.Exam) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO exams (session_id, day, slot, room, subject, owner_id, required_supervisors, exam_date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, version
	`

	for _, exam := range exams {
		args := []any{exam.SessionID, exam.Day, exam.Slot, exam.Room, exam.Subject, exam.OwnerID, exam.RequiredSupervisors, exam.ExamDate, exam.StartTime, exam.EndTime}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&exam.ID, &exam.CreatedAt, &exam.Version); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetExamsForAssignment 返回某周期的全部原始考试行，不做去重
// 去重由 assigner 的问题装载器负责
func (r *Repository) GetExamsForAssignment(sessionID int64) ([]*domain.Exam, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT id, session_id, day, slot, room, subject, owner_id, required_supervisors, exam_date, start_time, end_time, created_at, version
		FROM exams WHERE session_id = $1
		ORDER BY day, slot, room, id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := make([]*domain.Exam, 0)
	for rows.Next() {
		exam := &domain.Exam{}
		dst := []any{&exam.ID, &exam.SessionID, &exam.Day, &exam.Slot, &exam.Room, &exam.Subject, &exam.OwnerID, &exam.RequiredSupervisors, &exam.ExamDate, &exam.StartTime, &exam.EndTime, &exam.CreatedAt, &exam.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		exams = append(exams, exam)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exams, nil
}

// GetExamOwnerIDs 返回某个逻辑考场（同一 day/slot/room 的所有原始行）的出题教师
func (r *Repository) GetExamOwnerIDs(sessionID int64, day, slot int32, room string) ([]int64, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT DISTINCT owner_id FROM exams
		WHERE session_id = $1 AND day = $2 AND slot = $3 AND room = $4 AND owner_id IS NOT NULL
	`

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID, day, slot, room)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make([]int64, 0)
	for rows.Next() {
		var ownerID int64
		if err := rows.Scan(&ownerID); err != nil {
			return nil, err
		}
		owners = append(owners, ownerID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return owners, nil
}

func (r *Repository) DeleteExamsBySessionID(sessionID int64) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		DELETE FROM exams WHERE session_id = $1
	`

	if _, err := r.dbpool.ExecContext(ctx, query, sessionID); err != nil {
		return err
	}

	return nil
}

// InsertUnavailability 记录教师在某周期拒绝监考的时段
func (r *Repository) InsertUnavailability(u *domain.Unavailability) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		INSERT INTO unavailabilities (session_id, teacher_id, day, slot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, teacher_id, day, slot) DO NOTHING
		RETURNING id, created_at
	`

	args := []any{u.SessionID, u.TeacherID, u.Day, u.Slot}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 冲突时 DO NOTHING 不返回行，说明该时段已经登记过
			return nil
		}
		return err
	}

	return nil
}

func (r *Repository) GetUnavailabilities(sessionID int64) ([]*domain.Unavailability, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT id, session_id, teacher_id, day, slot, created_at
		FROM unavailabilities WHERE session_id = $1
	`

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	unavailabilities := make([]*domain.Unavailability, 0)
	for rows.Next() {
		u := &domain.Unavailability{}
		if err := rows.Scan(&u.ID, &u.SessionID, &u.TeacherID, &u.Day, &u.Slot, &u.CreatedAt); err != nil {
			return nil, err
		}
		unavailabilities = append(unavailabilities, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return unavailabilities, nil
}

// IsTeacherUnavailable 判断教师是否声明过某时段不可监考
func (r *Repository) IsTeacherUnavailable(sessionID, teacherID int64, day, slot int32) (bool, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM unavailabilities
			WHERE session_id = $1 AND teacher_id = $2 AND day = $3 AND slot = $4
		)
	`

	exists := false
	if err := r.dbpool.QueryRowContext(ctx, query, sessionID, teacherID, day, slot).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Repository) DeleteUnavailability(sessionID, teacherID int64, day, slot int32) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		DELETE FROM unavailabilities
		WHERE session_id = $1 AND teacher_id = $2 AND day = $3 AND slot = $4
	`

	if _, err := r.dbpool.ExecContext(ctx, query, sessionID, teacherID, day, slot); err != nil {
		return err
	}

	return nil
}
