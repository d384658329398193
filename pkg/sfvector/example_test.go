package sfvector_test

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/paulmach/orb"

	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

func Example() {
	sft, _ := feature.ParseSpec("example", "name:String,*geom:Point")

	cfg := sfvector.DefaultConfig()
	cfg.Encoding.Precision = sfvector.Float
	sfv, _ := sfvector.Create(sft, nil, cfg)
	defer sfv.Close()

	_ = sfv.Set(0, feature.MustNewSimpleFeature(sft, "f1", "a", orb.Point{1, 2}))
	sfv.SetValueCount(1)

	f := sfv.Get(0)
	p := f.DefaultGeometry().(orb.Point)
	fmt.Println(f.ID(), f.Attribute("name"), p.X(), p.Y())
	fmt.Println(sfv.Schema().Field(2).Type.(*arrow.FixedSizeListType).Elem())
	// Output:
	// f1 a 1 2
	// float32
}
