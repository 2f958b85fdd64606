package av

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type releaser struct {
	name string
	fn   func() error
}

// resourceScope releases session resources in reverse order of acquisition.
// Registering a resource immediately after acquiring it is what orders
// teardown: tick sources are acquired last and so stop first.
type resourceScope struct {
	owner string

	mu       sync.Mutex
	items    []releaser
	released bool
}

func newResourceScope(owner string) *resourceScope {
	return &resourceScope{owner: owner}
}

// add registers a release step.
func (r *resourceScope) add(name string, fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, releaser{name: name, fn: fn})
}

// release runs every registered step once, most recent first, and joins
// their errors.
func (r *resourceScope) release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil
	}
	r.released = true
	items := r.items
	r.items = nil
	r.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		if err := r.run(items[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *resourceScope) run(item releaser) error {
	err := item.fn()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "resourceScope.release",
			"session":  r.owner,
			"resource": item.name,
			"error":    err.Error(),
		}).Warn("Resource release failed")
		return fmt.Errorf("release %s: %w", item.name, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "resourceScope.release",
		"session":  r.owner,
		"resource": item.name,
	}).Debug("Resource released")
	return nil
}
