package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildUnknownClass(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build(Component{Name: "x", Class: "DoesNotExist"})
	assert.Error(t, err)
}

func TestRegistry_BuildPropagatesFactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register("Failing", func(c Component) (interface{}, error) {
		return nil, errors.New("boom")
	})

	_, err := r.Build(Component{Name: "x", Class: "Failing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	r.Register("Echo", func(c Component) (interface{}, error) {
		return c.Name, nil
	})

	obj, err := r.Build(Component{Name: "hello", Class: "Echo"})
	require.NoError(t, err)
	assert.Equal(t, "hello", obj)
}

func TestRegistry_RegisterPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register("Dup", func(c Component) (interface{}, error) { return nil, nil })

	assert.Panics(t, func() {
		r.Register("Dup", func(c Component) (interface{}, error) { return nil, nil })
	})
}
