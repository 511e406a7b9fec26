package types

// Envelope is the uniform response body returned by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// FieldError carries field-level validation detail in the errors array.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
