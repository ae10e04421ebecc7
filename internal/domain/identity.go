package domain

const RoleAdmin = "admin"

type Identity struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles,omitempty"`
}
