package dto

import "github.com/noah-isme/confhub-api/internal/models"

// UpdateRoleRequest changes a profile role.
type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=admin organizer attendee"`
}

// UserListQuery mirrors GET /users filters.
type UserListQuery struct {
	Role     string `form:"role"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
