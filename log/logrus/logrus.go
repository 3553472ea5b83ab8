package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/bucketcache"
)

var _ bucketcache.Logger = Logger{}

// Logger adapts a *logrus.Entry to bucketcache.Logger.
type Logger struct{ E *logrus.Entry }

// New wraps l; a nil l uses logrus.StandardLogger().
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f bucketcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f bucketcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f bucketcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f bucketcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f bucketcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
