package models

import "time"

// MemberRole is the role a user holds inside a group.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Valid reports whether r is a known role.
func (r MemberRole) Valid() bool {
	return r == MemberRoleAdmin || r == MemberRoleMember
}

// Group is a set of members sharing expenses.
type Group struct {
	Base
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:500" json:"description"`
	CreatedBy   string `gorm:"type:uuid;not null;index" json:"created_by"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// GroupMember links a user to a group.
type GroupMember struct {
	Base
	GroupID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_group_user" json:"group_id"`
	UserID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_group_user;index" json:"user_id"`
	Role     MemberRole `gorm:"size:20;not null;default:member" json:"role"`
	JoinedAt time.Time  `gorm:"not null" json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
