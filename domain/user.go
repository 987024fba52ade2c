package domain

// User field keys.
const (
	UserFieldEmail  = "email"
	UserFieldRole   = "role"
	UserFieldStatus = "status"
)

// User represents an identity in the platform.
type User struct {
	*Entity
}

func (u *User) Email() string          { return u.GetString(UserFieldEmail, "") }
func (u *User) SetEmail(v string) bool { return u.Set(UserFieldEmail, v) }
func (u *User) Role() string           { return u.GetString(UserFieldRole, "") }
func (u *User) SetRole(v string) bool  { return u.Set(UserFieldRole, v) }

func (u *User) IsActive() bool {
	return u != nil && u.GetString(UserFieldStatus, "") == "active"
}
