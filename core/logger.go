package core

// Logger is the logging contract shared by services and apps.
// args may carry errors, maps of extra data or the calling user.Actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
