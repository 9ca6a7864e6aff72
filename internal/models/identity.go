package models

// Identity is the caller a bookability check is evaluated for.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (i Identity) CurrentUserID() string    { return i.UserID }
func (i Identity) CurrentUserEmail() string { return i.Email }

// Anonymous reports whether neither id nor email is known.
func (i Identity) Anonymous() bool {
	return i.UserID == "" && i.Email == ""
}
