package gokit

import (
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/unkn0wn-root/bucketcache"
)

var _ bucketcache.Logger = Logger{}

// Logger adapts a go-kit log.Logger to bucketcache.Logger. Levels are
// attached with go-kit's level package, so level.NewFilter applies.
type Logger struct{ L log.Logger }

func (g Logger) Debug(msg string, f bucketcache.Fields) { g.log(level.Debug(g.L), msg, f) }
func (g Logger) Info(msg string, f bucketcache.Fields)  { g.log(level.Info(g.L), msg, f) }
func (g Logger) Warn(msg string, f bucketcache.Fields)  { g.log(level.Warn(g.L), msg, f) }
func (g Logger) Error(msg string, f bucketcache.Fields) { g.log(level.Error(g.L), msg, f) }

func (g Logger) log(l log.Logger, msg string, f bucketcache.Fields) {
	_ = l.Log(keyvals(msg, f)...)
}

// keyvals flattens f in key order so output is stable.
func keyvals(msg string, f bucketcache.Fields) []any {
	kv := make([]any, 0, 2+2*len(f))
	kv = append(kv, "msg", msg)
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		kv = append(kv, k, f[k])
	}
	return kv
}
