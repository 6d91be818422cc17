package model

// Entrada is a journal entry. Only visibility is managed here.
type Entrada struct {
	ID       string `firestore:"-" json:"id"`
	UserID   string `firestore:"userId" json:"userId"`
	IsPublic bool   `firestore:"isPublic" json:"isPublic"`
}
