package arraycache_test

import (
	"errors"
	"fmt"

	"github.com/hupe1980/arraycache"
)

// Example demonstrates inserting a binary payload and reading it back as a typed view.
func Example() {
	c := arraycache.New()

	// Two little-endian int32 values.
	c.Insert("a", []byte{1, 0, 0, 0, 2, 0, 0, 0}, arraycache.Int32)

	v, err := c.Get("a")
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(v.ElementType(), v.Len(), v.Float64s())
	// Output: int32 2 [1 2]
}

// Example_native demonstrates storing an already-decoded sequence.
func Example_native() {
	c := arraycache.New()
	c.InsertNative("b", []float64{3.5, 2.1})

	v, _ := c.Get("b")
	fmt.Println(v.Float64s())
	// Output: [3.5 2.1]
}

// Example_miss demonstrates matching a cache miss.
func Example_miss() {
	c := arraycache.New()

	_, err := c.Get("missing")
	fmt.Println(errors.Is(err, arraycache.ErrCacheMiss))
	// Output: true
}

// ExampleFeatureKey shows the key layout used for feature columns.
func ExampleFeatureKey() {
	fmt.Println(arraycache.FeatureKey("age", 0))
	fmt.Println(arraycache.FeatureKey("age", 4))
	fmt.Println(arraycache.SubsetKey("age", "a1b2", 4))
	// Output:
	// feature:age
	// feature:age/downsample/4
	// feature:age/downsample/4/subset/a1b2
}
