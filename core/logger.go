package core

// Logger is implemented by the app's logging services.
// args may hold errors, extra data (map[string]interface{}) and at most one Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the authenticated caller of an operation, as asserted by the upstream gateway.
type Actor struct {
	ID       string
	Username string
	Email    string
}
