package sfvector

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
)

// InferPrecision walks a geometry field down through list and fixed size
// list element fields until it reaches a floating point leaf. Any other leaf
// is an invalid argument naming the field.
func InferPrecision(field arrow.Field) (Precision, error) {
	dt := field.Type
	for {
		switch t := dt.(type) {
		case *arrow.Float32Type:
			return Float, nil
		case *arrow.Float64Type:
			return Double, nil
		case *arrow.ListType:
			dt = t.Elem()
		case *arrow.FixedSizeListType:
			dt = t.Elem()
		default:
			return Double, geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "no floating point leaf").
				WithDetail("field", field.Name).
				WithDetail("type", dt.String())
		}
	}
}
