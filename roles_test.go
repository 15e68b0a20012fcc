package studenthub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

func TestRolePermissions(t *testing.T) {
	assert.True(t, studenthub.RoleAdmin.Can(studenthub.PermManageUsers))
	assert.True(t, studenthub.RoleAdmin.Can(studenthub.PermManageCourses))
	assert.True(t, studenthub.RoleFaculty.Can(studenthub.PermEditAttendance))
	assert.True(t, studenthub.RoleFaculty.Can(studenthub.PermEditPerformance))
	assert.True(t, studenthub.RoleStudent.Can(studenthub.PermViewRecords))

	assert.False(t, studenthub.RoleFaculty.Can(studenthub.PermManageUsers))
	assert.False(t, studenthub.RoleStudent.Can(studenthub.PermEditAttendance))
	assert.False(t, studenthub.Role("visitor").Can(studenthub.PermViewRecords))
}

func TestParseRole(t *testing.T) {
	role, ok := studenthub.ParseRole("  Admin ")
	assert.True(t, ok)
	assert.Equal(t, studenthub.RoleAdmin, role)

	_, ok = studenthub.ParseRole("superuser")
	assert.False(t, ok)
}

func TestRoleNames(t *testing.T) {
	assert.Equal(t, "admin, faculty", studenthub.RoleNames([]studenthub.Role{
		studenthub.RoleAdmin, studenthub.RoleFaculty,
	}))
	assert.Empty(t, studenthub.RoleNames(nil))
}
