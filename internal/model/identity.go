package model

// Role classifies portal accounts on the backend.
type Role string

const (
	RolePatient  Role = "patient"
	RoleProvider Role = "provider"
)

// Identity is the profile resolved by exchanging a valid credential at the
// gateway's /auth/me endpoint. It is only trusted while the credential that
// produced it remains the active one.
type Identity struct {
	// ID is the backend account identifier.
	ID int `json:"id"`

	// Username is the login name.
	Username string `json:"username"`

	// Email is the account's contact address.
	Email string `json:"email"`

	// Role is the account kind ("patient" or "provider").
	Role Role `json:"role"`

	// FullName is the optional display name.
	FullName string `json:"full_name,omitempty"`
}
