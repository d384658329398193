package geoerrors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// Example demonstrates basic error creation with a field detail.
func Example() {
	err := geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "no floating point leaf").
		WithDetail("field", "geom")

	fmt.Println(err.Error())

	// Output:
	// invalid_argument: no floating point leaf (field geom)
}

// ExampleWrap shows how to wrap a store error with context.
func ExampleWrap() {
	err := geoerrors.Wrap(io.ErrUnexpectedEOF, geoerrors.ErrorTypeConnection, "scan failed").
		WithDetail("table", "roads_attr_v3")

	fmt.Println(geoerrors.IsRetryable(err))
	fmt.Println(errors.Is(err, io.ErrUnexpectedEOF))

	// Output:
	// true
	// true
}

func TestIsTypeFollowsCauses(t *testing.T) {
	inner := geoerrors.New(geoerrors.ErrorTypeInvalidSchema, "duplicate attribute")
	outer := geoerrors.Wrap(inner, geoerrors.ErrorTypeInvalidArgument, "cannot wrap vector")

	assert.True(t, geoerrors.IsType(outer, geoerrors.ErrorTypeInvalidArgument))
	assert.True(t, geoerrors.IsType(outer, geoerrors.ErrorTypeInvalidSchema))
	assert.False(t, geoerrors.IsType(outer, geoerrors.ErrorTypeData))
	assert.False(t, geoerrors.IsType(io.EOF, geoerrors.ErrorTypeData))
	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, geoerrors.Wrap(nil, geoerrors.ErrorTypeInternal, "nothing"))
	assert.False(t, geoerrors.IsRetryable(geoerrors.New(geoerrors.ErrorTypeData, "bad value")))
}
