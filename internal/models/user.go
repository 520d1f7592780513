package models

type UserRole string

const (
	RoleHR        UserRole = "hr"
	RoleApplicant UserRole = "applicant"
)

type User struct {
	ID        string   `json:"id" validate:"required"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Role      UserRole `json:"role" validate:"user_role"`
}

// IsApplicant reports whether the user takes assessments rather than previewing them.
func (u *User) IsApplicant() bool {
	return u.Role == RoleApplicant
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
