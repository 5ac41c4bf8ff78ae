package user

import "time"

// User is a registered customer. Deleting a user only clears Active.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterInput struct {
	Email    string
	FullName string
	Phone    string
}

type UpdateInput struct {
	FullName *string
	Phone    *string
}
