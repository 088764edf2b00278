package repository

import (
	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func (r *Repository) CreateTeacher(teacher *domain.Teacher) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		INSERT INTO teachers (full_name, email, grade_code)
		VALUES ($1, $2, $3)
		RETURNING id, rollover_credit, is_active, created_at, version
	`

	args := []any{teacher.FullName, teacher.Email, teacher.GradeCode}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&teacher.ID, &teacher.RolloverCredit, &teacher.IsActive, &teacher.CreatedAt, &teacher.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetTeacherByID(id int64) (*domain.Teacher, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT full_name, email, grade_code, rollover_credit, is_active, created_at, version
		FROM teachers WHERE id = $1
	`

	teacher := &domain.Teacher{
		ID: id,
	}

	dst := []any{&teacher.FullName, &teacher.Email, &teacher.GradeCode, &teacher.RolloverCredit, &teacher.IsActive, &teacher.CreatedAt, &teacher.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, err
	}

	return teacher, nil
}

func (r *Repository) GetAllTeachers() ([]*domain.Teacher, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT id, full_name, email, grade_code, rollover_credit, is_active, created_at, version
		FROM teachers ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teachers := make([]*domain.Teacher, 0)
	for rows.Next() {
		teacher := &domain.Teacher{}
		dst := []any{&teacher.ID, &teacher.FullName, &teacher.Email, &teacher.GradeCode, &teacher.RolloverCredit, &teacher.IsActive, &teacher.CreatedAt, &teacher.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		teachers = append(teachers, teacher)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return teachers, nil
}

func (r *Repository) UpdateTeacher(teacher *domain.Teacher) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		UPDATE teachers
		SET
			full_name = $1,
			email = $2,
			grade_code = $3,
			is_active = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING rollover_credit, created_at, version
	`

	args := []any{teacher.FullName, teacher.Email, teacher.GradeCode, teacher.IsActive, teacher.ID, teacher.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&teacher.RolloverCredit, &teacher.CreatedAt, &teacher.Version); err != nil {
		return err
	}

	return nil
}

// UpdateRolloverCredit 回写某位教师本次被尊重的不可用时段数
// 作为下个周期的顺延配额依据
func (r *Repository) UpdateRolloverCredit(teacherID int64, credit int32) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		UPDATE teachers SET rollover_credit = $1, version = version + 1 WHERE id = $2
	`

	if _, err := r.dbpool.ExecContext(ctx, query, credit, teacherID); err != nil {
		return err
	}

	return nil
}

// EnrollTeacher 写入教师在某周期的报名情况，重复报名时覆盖旧记录
func (r *Repository) EnrollTeacher(enrollment *domain.SessionTeacher) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		INSERT INTO session_teachers (session_id, teacher_id, participates, quota)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, teacher_id)
		DO UPDATE SET participates = EXCLUDED.participates, quota = EXCLUDED.quota
	`

	args := []any{enrollment.SessionID, enrollment.TeacherID, enrollment.Participates, enrollment.Quota}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetSessionTeachers(sessionID int64) ([]*domain.SessionTeacher, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT session_id, teacher_id, participates, quota
		FROM session_teachers WHERE session_id = $1
	`

	rows, err := r.dbpool.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrollments := make([]*domain.SessionTeacher, 0)
	for rows.Next() {
		st := &domain.SessionTeacher{}
		if err := rows.Scan(&st.SessionID, &st.TeacherID, &st.Participates, &st.Quota); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return enrollments, nil
}

// GetGradePriorities 返回职称到保护优先级的映射，数值越小越晚被松弛
func (r *Repository) GetGradePriorities() (map[string]int32, error) {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		SELECT grade_code, priority FROM grade_priorities
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	priorities := make(map[string]int32)
	for rows.Next() {
		var gradeCode string
		var priority int32
		if err := rows.Scan(&gradeCode, &priority); err != nil {
			return nil, err
		}
		priorities[gradeCode] = priority
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return priorities, nil
}

func (r *Repository) UpsertGradePriority(gp *domain.GradePriority) error {
	ctx, cancel := r.queryCtx()
	defer cancel()

	query := `
		INSERT INTO grade_priorities (grade_code, priority)
		VALUES ($1, $2)
		ON CONFLICT (grade_code) DO UPDATE SET priority = EXCLUDED.priority
	`

	if _, err := r.dbpool.ExecContext(ctx, query, gp.GradeCode, gp.Priority); err != nil {
		return err
	}

	return nil
}
