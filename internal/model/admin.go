package model

import "time"

// AdminRole gates the admin surface.
type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

// Admin is an operator account.
type Admin struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PasswordHash string     `json:"-"`
	Role         AdminRole  `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// AdminLoginResponse is returned after successful admin login.
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     Admin     `json:"admin"`
}

// RegisterAdminRequest is the payload for creating another admin.
type RegisterAdminRequest struct {
	Username string    `json:"username" binding:"required,alphanum,min=3,max=50"`
	Email    string    `json:"email" binding:"required,email,max=100"`
	FullName string    `json:"full_name" binding:"required,notblank,max=100"`
	Password string    `json:"password" binding:"required,min=8,max=128"`
	Role     AdminRole `json:"role" binding:"omitempty,oneof=admin super_admin"`
}

// AdminLog is one audit entry. Rows are append-only.
type AdminLog struct {
	ID          int64     `json:"id"`
	AdminID     *int64    `json:"admin_id,omitempty"`
	Username    *string   `json:"username,omitempty"`
	Action      string    `json:"action"`
	Description *string   `json:"description,omitempty"`
	IPAddress   *string   `json:"ip_address,omitempty"`
	UserAgent   *string   `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Audit actions.
const (
	AuditLogin           = "LOGIN"
	AuditLogout          = "LOGOUT"
	AuditRegisterAdmin   = "REGISTER_ADMIN"
	AuditCreateToken     = "CREATE_TOKEN"
	AuditUpdateToken     = "UPDATE_TOKEN"
	AuditDeleteToken     = "DELETE_TOKEN"
	AuditDeleteSession   = "DELETE_SESSION"
	AuditRecomputeResult = "RECOMPUTE_RESULT"
	AuditExportResults   = "EXPORT_RESULTS"
)

// ListLogsQuery is the query of GET /admin/logs.
type ListLogsQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=200"`
}
