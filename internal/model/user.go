package model

// User is the authenticated admin taken from the JWT subject.
type User struct {
	ID    int64  `db:"id" json:"id"`
	Email string `db:"email" json:"email,omitempty"`
}
