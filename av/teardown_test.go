package av

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceScopeReleasesInReverseOnce(t *testing.T) {
	scope := newResourceScope("test")
	var order []string
	for _, name := range []string{"guard", "decoder", "audio", "ticks"} {
		name := name
		scope.add(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, scope.release())
	assert.NoError(t, scope.release())
	assert.Equal(t, []string{"ticks", "audio", "decoder", "guard"}, order)
}

func TestResourceScopeJoinsErrorsAndContinues(t *testing.T) {
	scope := newResourceScope("test")
	errDecoder := errors.New("decoder busy")
	errAudio := errors.New("device lost")
	released := 0

	scope.add("guard", func() error { released++; return nil })
	scope.add("decoder", func() error { released++; return errDecoder })
	scope.add("audio", func() error { released++; return errAudio })

	err := scope.release()
	assert.ErrorIs(t, err, errDecoder)
	assert.ErrorIs(t, err, errAudio)
	assert.Contains(t, err.Error(), "release audio")
	assert.Equal(t, 3, released)
}
