package models

// UserRole is the console role carried in the IMS-issued access token.
type UserRole string

const (
	RoleSuperAdmin UserRole = "superadmin"
	RoleAdmin      UserRole = "admin"
	RoleCounsellor UserRole = "counsellor"
	RoleFaculty    UserRole = "faculty"
)

// IsAdmin reports whether the role may manage other users' work.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
