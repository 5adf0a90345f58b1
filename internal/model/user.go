package model

// User is the profile document keyed by the identity provider's UID.
type User struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	JoinDate   int64    `json:"joinDate"`
	Households []string `json:"households"`
}

// Account holds login credentials. It never leaves the server.
type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
}
