package logging

import "github.com/sirupsen/logrus"

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrus adapts a *logrus.Logger to the Logger interface. Passing nil
// creates a default logrus.Logger writing text-formatted output to
// stderr at info level, matching the defaults podman's cmd/podman/root.go
// falls back to before PersistentPreRunE applies flag-driven overrides.
func NewLogrus(base *logrus.Logger) Logger {
	if base == nil {
		base = logrus.New()
	}
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) With(component, connID string) Logger {
	fields := logrus.Fields{"component": component}
	if connID != "" {
		fields["conn"] = connID
	}
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}
