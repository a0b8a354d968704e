// Package domain contains entity without logic, just meta-data
package domain

// Identity is the verified subject behind a registration credential.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}
