package user

import "strings"

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminSuper = "admin:super"

	// Instructor
	RoleInstructor = "instructor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles      = []string{RoleAdmin, RoleAdminSuper}
	InstructorRoles = []string{RoleInstructor}
	StudentRoles    = []string{RoleStudent}
	AllRoles        = getAllRoles()
)

func getAllRoles() []string {
	all := make([]string, 0, 4)
	all = append(all, AdminRoles...)
	all = append(all, InstructorRoles...)
	all = append(all, StudentRoles...)
	return all
}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// System is the actor used by administrative tooling (CLI, jobs).
var System = Actor{UserID: "system", Role: RoleAdminSuper}

func (a Actor) roleStartsWith(prefix string) bool {
	return strings.HasPrefix(a.Role, prefix)
}

// IsOwner reports whether the actor is the user identified by userID.
func (a Actor) IsOwner(userID string) bool {
	return a.UserID != "" && a.UserID == userID
}

// IsAdministrative reports whether the actor holds any admin role.
func (a Actor) IsAdministrative() bool {
	return a.roleStartsWith(RoleAdmin)
}

func (a Actor) IsInstructor() bool {
	return a.roleStartsWith(RoleInstructor)
}

func (a Actor) IsStudent() bool {
	return a.roleStartsWith(RoleStudent)
}

// IsOwnerOrAdmin is the capability required to mutate a user's own records.
func (a Actor) IsOwnerOrAdmin(userID string) bool {
	return a.IsOwner(userID) || a.IsAdministrative()
}
