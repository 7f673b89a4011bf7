package services

import (
	"testing"

	"wall/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVisibleTable(t *testing.T) {
	author := models.User{ID: 1, Role: models.ROLE_STUDENT}
	moderatorRoles := []models.Role{models.ROLE_TEACHER, models.ROLE_ASSISTANT, models.ROLE_ADMIN}
	other := models.User{ID: 2, Role: models.ROLE_STUDENT}

	cases := []struct {
		name    string
		status  models.Status
		viewer  models.User
		visible bool
	}{
		{"pending own", models.STATUS_PENDING, author, true},
		{"pending others", models.STATUS_PENDING, other, false},
		{"approved own", models.STATUS_APPROVED, author, true},
		{"approved others", models.STATUS_APPROVED, other, true},
		{"rejected own", models.STATUS_REJECTED, author, false},
		{"rejected others", models.STATUS_REJECTED, other, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.visible, IsVisible(tc.status, author.ID, tc.viewer))
		})
	}

	// Модераторам видно все, включая чужой pending и rejected
	for _, role := range moderatorRoles {
		moderator := models.User{ID: 3, Role: role}
		for _, status := range []models.Status{models.STATUS_PENDING, models.STATUS_APPROVED, models.STATUS_REJECTED} {
			assert.True(t, IsVisible(status, author.ID, moderator), "role %s status %s", role, status)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(models.STATUS_PENDING, models.STATUS_APPROVED))
	require.NoError(t, ValidateTransition(models.STATUS_PENDING, models.STATUS_REJECTED))

	// Терминальные статусы не откатываются
	for _, from := range []models.Status{models.STATUS_APPROVED, models.STATUS_REJECTED} {
		for _, to := range []models.Status{models.STATUS_PENDING, models.STATUS_APPROVED, models.STATUS_REJECTED} {
			err := ValidateTransition(from, to)
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s must be rejected", from, to)
		}
	}

	err := ValidateTransition(models.STATUS_PENDING, models.STATUS_PENDING)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestModeratorRoles(t *testing.T) {
	assert.False(t, models.ROLE_STUDENT.IsModerator())
	assert.True(t, models.ROLE_TEACHER.IsModerator())
	assert.True(t, models.ROLE_ASSISTANT.IsModerator())
	assert.True(t, models.ROLE_ADMIN.IsModerator())
}
