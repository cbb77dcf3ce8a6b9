package coachdto

// ErrorResponse is the JSON envelope every non-2xx API response carries.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
