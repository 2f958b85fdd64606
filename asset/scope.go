package asset

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scope is a sandboxed resource whose access must be started before use and
// stopped afterwards.
type Scope interface {
	// StartAccessing begins access and reports whether it was granted.
	StartAccessing() bool
	// StopAccessing ends access started by a successful StartAccessing.
	StopAccessing()
}

// AccessGuard owns one granted access to a Scope.
type AccessGuard struct {
	scope Scope
	once  sync.Once
	name  string
}

// Acquire starts access to scope. A nil scope needs no access and yields a
// guard whose Release does nothing.
func Acquire(scope Scope, name string) (*AccessGuard, error) {
	if scope == nil {
		return &AccessGuard{name: name}, nil
	}
	if !scope.StartAccessing() {
		logrus.WithFields(logrus.Fields{
			"function": "Acquire",
			"resource": name,
		}).Warn("Scoped access refused")
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, name)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Acquire",
		"resource": name,
	}).Debug("Scoped access started")
	return &AccessGuard{scope: scope, name: name}, nil
}

// Release stops access. Only the first call has an effect, so every exit
// path may call it.
func (g *AccessGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.scope == nil {
			return
		}
		g.scope.StopAccessing()
		logrus.WithFields(logrus.Fields{
			"function": "AccessGuard.Release",
			"resource": g.name,
		}).Debug("Scoped access stopped")
	})
}
