package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

func TestValidateSlotWithinSession(t *testing.T) {
	session := &domain.ExamSession{NumDays: 5, SlotsPerDay: 3}

	assert.NoError(t, ValidateSlotWithinSession(session, 1, 1))
	assert.NoError(t, ValidateSlotWithinSession(session, 5, 3))

	assert.Error(t, ValidateSlotWithinSession(session, 0, 1))
	assert.Error(t, ValidateSlotWithinSession(session, 6, 1))
	assert.Error(t, ValidateSlotWithinSession(session, 1, 0))
	assert.Error(t, ValidateSlotWithinSession(session, 1, 4))
}

func TestValidateExamTimes(t *testing.T) {
	assert.NoError(t, ValidateExamTimes("08:30:00", "10:30:00"))

	assert.Error(t, ValidateExamTimes("10:30:00", "08:30:00"))
	assert.Error(t, ValidateExamTimes("08:30:00", "08:30:00"))
	assert.Error(t, ValidateExamTimes("8点半", "10:30:00"))
	assert.Error(t, ValidateExamTimes("08:30:00", "十点半"))
}
