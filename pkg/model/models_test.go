package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyReports(t *testing.T) {
	reports := EmptyReports()

	assert.Equal(t, 0, reports.ReportNum)
	assert.Len(t, reports.Reporters, 0)
	assert.Len(t, reports.ReportTypes, 0)
	assert.Len(t, reports.Comments, 0)

	// the parallel sequences stay non-nil so appends and json encoding
	// behave the same on a fresh post as on a reported one
	assert.NotNil(t, reports.Reporters)
	assert.NotNil(t, reports.ReportTypes)
	assert.NotNil(t, reports.Comments)
}

func TestUserSummary(t *testing.T) {
	user := User{
		ID:       7,
		UID:      "user-7",
		Role:     RoleAdmin,
		Name:     "Grace",
		Username: "grace",
		Email:    "grace@example.com",
		Profile:  "profile-url",
		Friends:  []int64{1, 2},
	}

	summary := user.Summary()
	assert.Equal(t, int64(7), summary.ID)
	assert.Equal(t, "user-7", summary.UID)
	assert.Equal(t, "Grace", summary.Name)
	assert.Equal(t, "grace", summary.Username)
	assert.Equal(t, "profile-url", summary.Profile)
}
