package service

import "bizops_backend/internal/model"

// Caller identifies the authenticated user an operation runs for.
type Caller struct {
	UserID uint
	Role   model.UserRole
}

func (c Caller) IsAdmin() bool {
	return c.Role == model.Admin
}

// CanManage reports whether the caller may act on a questionnaire owned by creatorID.
func (c Caller) CanManage(creatorID uint) bool {
	return c.IsAdmin() || c.UserID == creatorID
}
