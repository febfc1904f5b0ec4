package dto

import "github.com/spec-kit/intervention-service/internal/domain"

// CreateUserRequest payload for administrator-created accounts.
type CreateUserRequest struct {
	Username    string   `json:"username" validate:"required,max=64"`
	DisplayName string   `json:"displayName" validate:"required,max=200"`
	Email       string   `json:"email" validate:"omitempty,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	Roles       []string `json:"roles" validate:"required,min=1,dive,oneof=ADMIN GESTOR SUPERVISOR TECNICO"`
}

// UpdateUserRequest payload. Absent fields are left unchanged.
type UpdateUserRequest struct {
	DisplayName *string  `json:"displayName" validate:"omitempty,max=200"`
	Email       *string  `json:"email" validate:"omitempty,email"`
	Roles       []string `json:"roles" validate:"omitempty,min=1,dive,oneof=ADMIN GESTOR SUPERVISOR TECNICO"`
	IsActive    *bool    `json:"isActive"`
}

// ResetPasswordRequest payload.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// UserResponse is the public view of a user. Credentials never leave the service.
type UserResponse struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	Email       string        `json:"email"`
	Roles       []domain.Role `json:"roles"`
	IsActive    bool          `json:"isActive"`
	CreatedAt   string        `json:"createdAt"`
	UpdatedAt   string        `json:"updatedAt"`
}

// TechnicianResponse is the slim view used by assignment pickers.
type TechnicianResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// NewUserResponse formats a user without credentials.
func NewUserResponse(u *domain.User) UserResponse {
	roles := u.Roles
	if roles == nil {
		roles = []domain.Role{}
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Roles:       roles,
		IsActive:    u.Active,
		CreatedAt:   FormatTime(u.CreatedAt),
		UpdatedAt:   FormatTime(u.UpdatedAt),
	}
}

// NewUserList formats a slice of users.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

// NewTechnicianList formats technicians for pickers.
func NewTechnicianList(users []domain.User) []TechnicianResponse {
	out := make([]TechnicianResponse, len(users))
	for i, u := range users {
		out[i] = TechnicianResponse{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Email: u.Email}
	}
	return out
}

// ParseRoles converts validated role names.
func ParseRoles(values []string) []domain.Role {
	if values == nil {
		return nil
	}
	roles := make([]domain.Role, len(values))
	for i, value := range values {
		roles[i] = domain.Role(value)
	}
	return roles
}
