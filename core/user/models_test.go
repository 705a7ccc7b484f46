package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActor_capabilities(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		target    string
		wantOwner bool
		wantAdmin bool
		wantStud  bool
		wantInstr bool
	}{
		{name: "student owner", actor: Actor{UserID: "s1", Role: RoleStudent}, target: "s1", wantOwner: true, wantStud: true},
		{name: "student other", actor: Actor{UserID: "s1", Role: RoleStudent}, target: "s2", wantStud: true},
		{name: "instructor", actor: Actor{UserID: "i1", Role: RoleInstructor}, target: "s1", wantInstr: true},
		{name: "admin", actor: Actor{UserID: "a1", Role: RoleAdmin}, target: "s1", wantAdmin: true},
		{name: "super admin", actor: Actor{UserID: "a2", Role: RoleAdminSuper}, target: "s1", wantAdmin: true},
		{name: "anonymous never owns", actor: Actor{}, target: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOwner, tt.actor.IsOwner(tt.target))
			assert.Equal(t, tt.wantAdmin, tt.actor.IsAdministrative())
			assert.Equal(t, tt.wantStud, tt.actor.IsStudent())
			assert.Equal(t, tt.wantInstr, tt.actor.IsInstructor())
			assert.Equal(t, tt.wantOwner || tt.wantAdmin, tt.actor.IsOwnerOrAdmin(tt.target))
		})
	}
}

func TestRoles(t *testing.T) {
	assert.Len(t, AllRoles, 4)
	assert.True(t, IsValidRole(RoleAdminSuper))
	assert.False(t, IsValidRole("teacher:"))
	assert.False(t, IsValidRole(""))
	assert.True(t, System.IsAdministrative())
}
