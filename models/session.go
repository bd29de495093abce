package models

// Session identifies the authenticated user a notification store serves.
// It is injected explicitly at store construction; there is no ambient
// session state anywhere in the service.
type Session struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
