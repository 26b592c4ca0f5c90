package session

import (
	"fmt"
)

// Slot 0 of the method columns is a sentinel standing for the unknown caller.
// It is written by the first registration that adds at least one method, so
// the first real method always gets id 1.
const (
	SentinelMethodID    = 0
	SentinelMethodClass = "Thread"
)

// MethodBatch is a group of instrumented methods, ordered by owning class.
// Classes, LoaderIDs and MethodCounts run in parallel; MethodNames,
// MethodSignatures and the optional Invoked flags hold one entry per method.
type MethodBatch struct {
	Classes          []string `json:"classes"`
	LoaderIDs        []int    `json:"loader_ids"`
	MethodCounts     []int    `json:"method_counts"`
	MethodNames      []string `json:"method_names"`
	MethodSignatures []string `json:"method_signatures"`
	Invoked          []bool   `json:"invoked,omitempty"`
}

// NumMethods is the sum of MethodCounts. It is only meaningful for a batch
// that passed Validate.
func (b MethodBatch) NumMethods() int {
	n := 0
	for _, c := range b.MethodCounts {
		n += c
	}
	return n
}

// Validate reports the first disagreement between the batch's parallel slices.
func (b MethodBatch) Validate() error {
	if len(b.LoaderIDs) != len(b.Classes) {
		return fmt.Errorf("%w: %d classes but %d loader ids", ErrMalformedBatch, len(b.Classes), len(b.LoaderIDs))
	}
	if len(b.MethodCounts) != len(b.Classes) {
		return fmt.Errorf("%w: %d classes but %d method counts", ErrMalformedBatch, len(b.Classes), len(b.MethodCounts))
	}
	n := 0
	for i, c := range b.MethodCounts {
		if c < 0 {
			return fmt.Errorf("%w: class %q has negative method count %d", ErrMalformedBatch, b.Classes[i], c)
		}
		if c > maxCapacity-n {
			return fmt.Errorf("%w: method counts add up to more than %d", ErrMalformedBatch, maxCapacity)
		}
		n += c
	}

	if len(b.MethodNames) != n {
		return fmt.Errorf("%w: method counts add up to %d but %d method names given", ErrMalformedBatch, n, len(b.MethodNames))
	}
	if len(b.MethodSignatures) != n {
		return fmt.Errorf("%w: method counts add up to %d but %d signatures given", ErrMalformedBatch, n, len(b.MethodSignatures))
	}
	if b.Invoked != nil && len(b.Invoked) != n {
		return fmt.Errorf("%w: method counts add up to %d but %d invoked flags given", ErrMalformedBatch, n, len(b.Invoked))
	}
	return nil
}

// inventory is the aggregate of instrumented classes and methods. It has no
// locking of its own; every method is called by Status inside a transaction.
type inventory struct {
	// object allocation tracking
	classNames  column[string]
	allocCounts column[int]
	nClasses    int

	// method group tracking
	methodClasses column[string]
	loaderIDs     column[int]
	methodNames   column[string]
	methodSigs    column[string]
	invoked       column[bool]
	nMethods      int
}

func (inv *inventory) classColumns() []resizer {
	return []resizer{&inv.classNames, &inv.allocCounts}
}

func (inv *inventory) methodColumns() []resizer {
	return []resizer{&inv.methodClasses, &inv.loaderIDs, &inv.methodNames, &inv.methodSigs, &inv.invoked}
}

func (inv *inventory) addClasses(names ...string) (int, error) {
	if len(names) == 0 {
		return inv.nClasses, nil
	}
	if err := growTogether(inv.nClasses+len(names), inv.nClasses, inv.classColumns()...); err != nil {
		return inv.nClasses, err
	}

	for _, name := range names {
		inv.classNames.buf[inv.nClasses] = name
		inv.allocCounts.buf[inv.nClasses] = 0
		inv.nClasses++
	}
	return inv.nClasses, nil
}

func (inv *inventory) setClassTotal(total int) error {
	if total < inv.nClasses {
		return fmt.Errorf("%w: %d < %d", ErrShrink, total, inv.nClasses)
	}
	if err := growTogether(total, inv.nClasses, inv.classColumns()...); err != nil {
		return err
	}
	inv.nClasses = total
	return nil
}

// reserve grows the method columns for added new methods and writes the
// sentinel if this is the first registration. It returns the slot the first
// added method goes to.
func (inv *inventory) reserve(added int) (int, error) {
	first := inv.nMethods == 0
	sentinel := 0
	if first {
		sentinel = 1
	}
	if err := growTogether(inv.nMethods+sentinel+added, inv.nMethods, inv.methodColumns()...); err != nil {
		return 0, err
	}

	if first {
		inv.methodClasses.buf[SentinelMethodID] = SentinelMethodClass
		inv.loaderIDs.buf[SentinelMethodID] = 0
		inv.methodNames.buf[SentinelMethodID] = ""
		inv.methodSigs.buf[SentinelMethodID] = ""
		inv.invoked.buf[SentinelMethodID] = false
		inv.nMethods = 1
	}
	return inv.nMethods, nil
}

// markEager flags slots [from, inv.nMethods) as invoked. The sentinel is
// included when from is 0.
func (inv *inventory) markEager(from int) {
	for i := from; i < inv.nMethods; i++ {
		inv.invoked.buf[i] = true
	}
}

func (inv *inventory) addMethodBatch(b MethodBatch, scheme InstrScheme) (int, error) {
	n := b.NumMethods()
	if n == 0 {
		return max(inv.nMethods, SentinelMethodID+1), nil
	}

	before := inv.nMethods
	idx, err := inv.reserve(n)
	if err != nil {
		return 0, err
	}
	start := idx

	for i, class := range b.Classes {
		for j := 0; j < b.MethodCounts[i]; j++ {
			inv.methodClasses.buf[idx] = class
			inv.loaderIDs.buf[idx] = b.LoaderIDs[i]
			idx++
		}
	}
	copy(inv.methodNames.buf[start:], b.MethodNames)
	copy(inv.methodSigs.buf[start:], b.MethodSignatures)
	if b.Invoked != nil {
		copy(inv.invoked.buf[start:], b.Invoked)
	} else {
		clear(inv.invoked.buf[start : start+n])
	}
	inv.nMethods = start + n

	if scheme == InstrSchemeEager {
		inv.markEager(before)
	}
	return start, nil
}

func (inv *inventory) addMethod(class string, loaderID int, name, signature string, scheme InstrScheme) (int, error) {
	before := inv.nMethods
	idx, err := inv.reserve(1)
	if err != nil {
		return 0, err
	}

	inv.methodClasses.buf[idx] = class
	inv.loaderIDs.buf[idx] = loaderID
	inv.methodNames.buf[idx] = name
	inv.methodSigs.buf[idx] = signature
	inv.invoked.buf[idx] = false
	inv.nMethods = idx + 1

	if scheme == InstrSchemeEager {
		inv.markEager(before)
	}
	return idx, nil
}

func (inv *inventory) checkMethod(idx int) error {
	if idx <= SentinelMethodID || idx >= inv.nMethods {
		return fmt.Errorf("%w: method %d not in [1, %d)", ErrIndexOutOfRange, idx, inv.nMethods)
	}
	return nil
}

func (inv *inventory) checkClass(idx int) error {
	if idx < 0 || idx >= inv.nClasses {
		return fmt.Errorf("%w: class %d not in [0, %d)", ErrIndexOutOfRange, idx, inv.nClasses)
	}
	return nil
}

func (inv *inventory) reset() {
	for _, c := range []interface{ clear() }{
		&inv.classNames, &inv.allocCounts,
		&inv.methodClasses, &inv.loaderIDs, &inv.methodNames, &inv.methodSigs, &inv.invoked,
	} {
		c.clear()
	}
	inv.nClasses = 0
	inv.nMethods = 0
}
