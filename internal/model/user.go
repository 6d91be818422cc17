package model

// User is the subset of the profile document the legacy workflow touches.
type User struct {
	ID         string `firestore:"-" json:"id"`
	Name       string `firestore:"name,omitempty" json:"name,omitempty"`
	Email      string `firestore:"email,omitempty" json:"email,omitempty"`
	IsDeceased bool   `firestore:"isDeceased" json:"isDeceased"`
	IsPremium  bool   `firestore:"isPremium" json:"isPremium"`
}

// DisplayName falls back to a generic label when the profile has no name.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "Usuario"
	}
	return u.Name
}
