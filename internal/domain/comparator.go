package domain

import (
	"fmt"
	"math"
	"reflect"
	"sync"
)

// Comparator is a repeatable rendezvous where a fixed number of goroutines
// exchange named values and verify they all observed the same thing. The
// first-arrived caller of each round performs the validation; only it
// observes a mismatch, the rest return nil. This asymmetry is deliberate and
// pinned by the tests.
type Comparator struct {
	n            int
	entryBarrier *Barrier
	valueBarrier *Barrier

	mu         sync.Mutex
	entryCount int
	values     []map[string]any
	done       chan struct{}
}

// NewComparator creates a comparator for n participants. The same instance
// can be reused for any number of rounds.
func NewComparator(n int) *Comparator {
	return &Comparator{
		n:            n,
		entryBarrier: NewBarrier(n),
		valueBarrier: NewBarrier(n),
	}
}

// Compare blocks until all participants have supplied their values for this
// round, then verifies that every named value matches across participants.
// Round state is fully reset before anyone proceeds, so a fast caller can
// never bleed into a previous round.
func (c *Comparator) Compare(values map[string]any) error {
	if err := c.entryBarrier.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.entryCount == 0 {
		// First arrival resets the round.
		c.values = make([]map[string]any, 0, c.n)
		c.done = make(chan struct{})
	}

	c.entryCount++
	arrival := len(c.values)
	c.values = append(c.values, values)
	done := c.done
	c.mu.Unlock()

	if err := c.valueBarrier.Wait(); err != nil {
		return err
	}

	if arrival != 0 {
		<-done
		return nil
	}

	err := c.validate()

	c.mu.Lock()
	c.entryCount = 0
	c.mu.Unlock()

	close(done)

	return err
}

// validate pairwise-compares consecutive arrivals for every value name
// supplied by the first arrival.
func (c *Comparator) validate() error {
	for name := range c.values[0] {
		for i := 1; i < len(c.values); i++ {
			if err := compareValues(name, c.values[i-1][name], c.values[i][name]); err != nil {
				return err
			}
		}
	}

	return nil
}

func compareValues(name string, a, b any) error {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return fmt.Errorf("value %q: type mismatch: %v != %v", name, ta, tb)
	}

	if ta == nil {
		return nil
	}

	switch ta.Kind() {
	case reflect.Func:
		if reflect.ValueOf(a).Pointer() != reflect.ValueOf(b).Pointer() {
			return fmt.Errorf("value %q: distinct functions", name)
		}

		return nil

	case reflect.Float32, reflect.Float64:
		fa, fb := reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()
		if !floatsClose(fa, fb) {
			return fmt.Errorf("value %q: %v != %v", name, fa, fb)
		}

		return nil

	case reflect.Slice:
		if isFloatSlice(ta) {
			return compareFloatSlices(name, reflect.ValueOf(a), reflect.ValueOf(b))
		}
	}

	if !reflect.DeepEqual(a, b) {
		return fmt.Errorf("value %q: %#v != %#v", name, a, b)
	}

	return nil
}

func isFloatSlice(t reflect.Type) bool {
	kind := t.Elem().Kind()
	return kind == reflect.Float32 || kind == reflect.Float64
}

// compareFloatSlices compares numeric containers approximately, treating NaN
// as equal to NaN.
func compareFloatSlices(name string, a, b reflect.Value) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("value %q: length mismatch: %d != %d", name, a.Len(), b.Len())
	}

	for i := 0; i < a.Len(); i++ {
		fa, fb := a.Index(i).Float(), b.Index(i).Float()
		if !floatsClose(fa, fb) {
			return fmt.Errorf("value %q: element %d: %v != %v", name, i, fa, fb)
		}
	}

	return nil
}

// floatsClose is an approximate equality with NaN == NaN.
func floatsClose(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}

	const tolerance = 1e-8

	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))

	return math.Abs(a-b) <= tolerance*scale
}
