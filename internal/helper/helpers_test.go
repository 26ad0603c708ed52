package helper_test

import (
	"errors"
	"testing"

	"github.com/on-the-ground/flux_ive_go/internal/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type increment struct{ By int }

func TestGetTypedValueOf(t *testing.T) {
	v, err := helper.GetTypedValueOf[int](func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = helper.GetTypedValueOf[string](func() (any, error) { return 42, nil })
	assert.ErrorContains(t, err, "unexpected type: int")

	boom := errors.New("boom")
	_, err = helper.GetTypedValueOf[int](func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestMustGetTypedValue_Panics(t *testing.T) {
	assert.Panics(t, func() {
		helper.MustGetTypedValue[string](func() (any, error) { return 1, nil })
	})
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "increment", helper.TypeName(increment{By: 1}))
	assert.Equal(t, "increment", helper.TypeName(&increment{By: 1}))
	assert.Equal(t, "string", helper.TypeName("reset"))
	assert.Equal(t, "[]int", helper.TypeName([]int{1}))
	assert.Equal(t, "nil", helper.TypeName(nil))
	assert.Equal(t, "*helper_test.increment", helper.TypeName((*increment)(nil)))
}
