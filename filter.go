package regbloom

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

const (
	DefaultErrorRate    = 0.001
	DefaultMinLength    = 20
	DefaultFilterLength = 20
)

type FilterParams struct {
	// ErrorRate is the target false-positive rate, in the open interval (0, 1)
	ErrorRate float64
	// MinLength is the lower bound for the filter bit length
	MinLength uint
	// FilterLength is the initial filter bit length; it only ever grows
	FilterLength uint
}

func (fp FilterParams) withDefaults() FilterParams {
	if fp.ErrorRate == 0 {
		fp.ErrorRate = DefaultErrorRate
	}
	if fp.MinLength == 0 {
		fp.MinLength = DefaultMinLength
	}
	if fp.FilterLength == 0 {
		fp.FilterLength = DefaultFilterLength
	}
	return fp
}

// Filter answers "has this identifier been registered before" without
// storing the identifiers themselves. Mutations only mark the filter
// dirty; the expensive rebuild is deferred until the next check or an
// explicit Build call. A Filter is not safe for concurrent use; callers
// that share one must serialize access externally.
type Filter struct {
	digester Digester
	hooks    *Hooks

	errorRate    float64
	minLength    uint
	filterLength uint

	contents       map[string]int
	availableSalts []string
	activeSalts    []string

	bits  *bitset.BitSet
	dirty bool
}

func New(params FilterParams) *Filter {
	return NewWithDigester(NewSHA1Digester(), params)
}

func NewWithDigester(digester Digester, params FilterParams) *Filter {
	params = params.withDefaults()
	return &Filter{
		digester:     digester,
		hooks:        NewHooks(),
		errorRate:    params.ErrorRate,
		minLength:    params.MinLength,
		filterLength: params.FilterLength,
		contents:     map[string]int{},
		dirty:        true,
	}
}

func (f *Filter) SetHooks(hooks *Hooks) {
	f.hooks = hooks
}

// SetErrorRate replaces the target false-positive rate and marks the
// filter dirty.
func (f *Filter) SetErrorRate(rate float64) error {
	if rate <= 0 || rate >= 1 {
		return errors.Wrapf(ErrValidation, "error rate %v is out of the (0, 1) interval", rate)
	}
	f.errorRate = rate
	f.dirty = true
	return nil
}

// SetSalts replaces both the available and the active salts with the
// given ordered list and returns its length. The sizing pass on the next
// build decides how many of them actually get used.
func (f *Filter) SetSalts(salts []string) int {
	f.availableSalts = append([]string(nil), salts...)
	f.activeSalts = f.availableSalts
	f.dirty = true
	return len(f.availableSalts)
}

// Salts returns the currently active salts, nil when none are set.
func (f *Filter) Salts() []string {
	return f.activeSalts
}

// Clear empties the stored contents and the salts and marks the filter
// dirty. The filter length is kept, so it stays monotone across the
// lifetime of the instance.
func (f *Filter) Clear() {
	f.contents = map[string]int{}
	f.availableSalts = nil
	f.activeSalts = nil
	f.dirty = true
}

// Add stores the given keys. A key that looks like a raw identifier
// (contains "@") is replaced by its canonical digest encoding first, so
// the identifier itself is never kept. Duplicates only bump the
// occurrence count.
func (f *Filter) Add(keys ...string) {
	if len(keys) == 0 {
		return
	}
	for _, key := range keys {
		f.contents[f.canonicalKey(key)]++
	}
	f.dirty = true
}

// ItemsCount returns the number of distinct stored keys.
func (f *Filter) ItemsCount() int {
	return len(f.contents)
}

// Occurrences returns how many times key has been added.
func (f *Filter) Occurrences(key string) int {
	return f.contents[f.canonicalKey(key)]
}

// FilterLength returns the current filter bit length.
func (f *Filter) FilterLength() uint {
	return f.filterLength
}

// Build recomputes the sizing, rehashes every stored key and atomically
// replaces the filter bit vector. Either the whole build succeeds or the
// previously built vector stays untouched.
func (f *Filter) Build() error {
	if len(f.availableSalts) == 0 {
		return errors.Wrap(ErrConfiguration, "salts are not set")
	}

	f.hooks.Before(Sizing, f.ItemsCount())
	sz, sizingErr := estimateSizing(
		f.ItemsCount(),
		f.errorRate,
		len(f.availableSalts),
		f.minLength,
		f.filterLength,
	)
	f.hooks.After(Sizing, sizingErr, sz.bitsCount, sz.saltsCount)
	if sizingErr != nil {
		return sizingErr
	}

	f.hooks.Before(Rebuild, sz.bitsCount)
	active := f.availableSalts[:sz.saltsCount]
	acc := bitset.New(sz.bitsCount)
	for key := range f.contents {
		mask, maskErr := bitmask(f.digester, key, active, sz.bitsCount)
		if maskErr != nil {
			f.hooks.AfterFail(Rebuild, maskErr)
			return maskErr
		}
		acc.InPlaceUnion(mask)
	}

	f.filterLength = sz.bitsCount
	f.activeSalts = active
	f.bits = acc
	f.dirty = false
	f.hooks.AfterSuccess(Rebuild, f.filterLength)
	return nil
}

// CheckAll tests the given keys for membership, rebuilding the filter
// first if it is stale. Results come back in input order. A positive
// answer may be a false positive; a negative answer is never wrong.
func (f *Filter) CheckAll(keys ...string) ([]bool, error) {
	if len(keys) == 0 {
		return []bool{}, nil
	}
	if f.dirty || f.bits == nil {
		if buildErr := f.Build(); buildErr != nil {
			return nil, buildErr
		}
	}

	f.hooks.Before(Check, len(keys))
	results := make([]bool, len(keys))
	for i, key := range keys {
		mask, maskErr := bitmask(f.digester, f.canonicalKey(key), f.activeSalts, f.filterLength)
		if maskErr != nil {
			f.hooks.AfterFail(Check, maskErr)
			return nil, maskErr
		}
		results[i] = f.bits.IsSuperSet(mask)
	}
	f.hooks.AfterSuccess(Check, results)
	return results, nil
}

// CheckOne is the single-key form of CheckAll.
func (f *Filter) CheckOne(key string) (bool, error) {
	results, err := f.CheckAll(key)
	if err != nil {
		return false, err
	}
	return results[0], nil
}

// OnBits returns the population count of the built filter vector; ok is
// false when no filter has ever been built.
func (f *Filter) OnBits() (count uint, ok bool) {
	if f.bits == nil {
		return 0, false
	}
	return f.bits.Count(), true
}

func (f *Filter) canonicalKey(key string) string {
	return canonicalKey(f.digester, key)
}
