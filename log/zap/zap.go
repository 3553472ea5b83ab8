package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/bucketcache"
)

var _ bucketcache.Logger = Logger{}

// Logger adapts a *zap.Logger to bucketcache.Logger.
type Logger struct{ L *zap.Logger }

// New returns a Logger that tags every entry with the component name.
func New(l *zap.Logger, component string) Logger {
	if component != "" {
		l = l.With(zap.String("component", component))
	}
	return Logger{L: l}
}

func (z Logger) Debug(msg string, f bucketcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f bucketcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f bucketcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f bucketcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f bucketcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
