package model

import "time"

// StatusComplete is the only status a stored document can have.
const StatusComplete = "Completo"

// Document represents an uploaded PDF (or an image sent through the generic upload route).
// This is a pure domain model with no database-specific dependencies or tags.
type Document struct {
	ID         int64     `json:"id"`
	Title      string    `json:"titulo"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Status     string    `json:"estado"`
	UploadedAt time.Time `json:"fecha_subida"`
}

// Image represents an uploaded picture.
type Image struct {
	ID         int64     `json:"id"`
	Name       string    `json:"nombre"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"fecha_subida"`
}

// Credential is a username/password pair used by the login check.
// The password is stored and compared as plaintext.
type Credential struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
}
