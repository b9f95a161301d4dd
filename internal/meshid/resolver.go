// Package meshid implements the mesh-ID resolver (spec C1): a constant-time
// key -> dense-index mapping over meshstore's fixed ~1.55M-key universe,
// realized as a minimal perfect hash (CHD, "compress hash displace")
// embedded in the store file.
//
// The hash itself is the upstream github.com/opencoff/go-chd algorithm
// (grounded on other_examples/9d69a838_opencoff-go-chd__chd.go.go, a real
// published module) rather than a reimplementation: meshid only adds the
// digit-range filter, the single-exception carve-out, the reverse index,
// and the I3 integrity check spec.md requires on top of it.
package meshid

import (
	"bytes"
	"fmt"
	"io"

	chd "github.com/opencoff/go-chd"
)

// NotFound is the sentinel returned when a key has no dense index.
const NotFound = -1

// legalLow/legalHigh bound the 9-digit decimal key range [10^8, 10^9).
const (
	legalLow  = 100_000_000
	legalHigh = 1_000_000_000
)

// ErrIntegrity is returned by VerifyIntegrity when the reverse index derived
// from the universe list disagrees with the embedded hash (spec I3).
var ErrIntegrity = fmt.Errorf("meshid: universe/hash integrity check failed")

// Resolver maps mesh keys to dense indices in [0, N) and back. One instance
// is created per open store handle (spec §9: "exactly one resolver instance
// per open handle").
type Resolver struct {
	universe     []uint32 // U: the ordered mesh key universe, length N
	hashed       *chd.Chd // covers universe[0:hashedLen]
	hashedLen    int      // number of keys covered by the CHD (N, or N-1 if an exception key exists)
	exceptionKey uint32   // the documented 10-digit exception key, 0 if none
}

// Build constructs a Resolver over universe. If exceptionKey is non-zero, it
// must equal universe[len(universe)-1] (spec §4.1: "a single 10-digit key
// maps to a dedicated trailing index N-1"); the CHD is built only over the
// remaining 9-digit keys, and the exception key is resolved by direct
// comparison, never through the hash.
func Build(universe []uint32, exceptionKey uint32) (*Resolver, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("meshid: empty universe")
	}
	hashedLen := len(universe)
	if exceptionKey != 0 {
		if universe[len(universe)-1] != exceptionKey {
			return nil, fmt.Errorf("meshid: exception key %d is not the final universe entry", exceptionKey)
		}
		hashedLen = len(universe) - 1
	}

	b, err := chd.New()
	if err != nil {
		return nil, fmt.Errorf("meshid: new chd builder: %w", err)
	}
	for _, k := range universe[:hashedLen] {
		if err := b.Add(uint64(k)); err != nil {
			return nil, fmt.Errorf("meshid: add key %d: %w", k, err)
		}
	}
	h, err := b.Freeze(0.85)
	if err != nil {
		return nil, fmt.Errorf("meshid: freeze mph: %w", err)
	}

	r := &Resolver{
		universe:     append([]uint32(nil), universe...),
		hashed:       h,
		hashedLen:    hashedLen,
		exceptionKey: exceptionKey,
	}
	if err := r.VerifyIntegrity(); err != nil {
		return nil, err
	}
	return r, nil
}

// BuildLocal builds an ad-hoc resolver over a small in-memory id subset
// (spec §4.1's "local resolvers", e.g. the 25,600 ids inside one coarse
// mesh cell). It has the same Resolve contract, but its dense index space
// is local to this subset, not the store-wide universe.
func BuildLocal(ids []uint32) (*Resolver, error) {
	return Build(ids, 0)
}

// N returns the universe cardinality.
func (r *Resolver) N() int {
	return len(r.universe)
}

// Resolve maps key to its dense index, or NotFound.
func (r *Resolver) Resolve(key uint32) int {
	if r.exceptionKey != 0 && key == r.exceptionKey {
		return len(r.universe) - 1
	}
	if key < legalLow || key >= legalHigh {
		return NotFound
	}
	h := r.hashed.Find(uint64(key))
	if h >= uint64(r.hashedLen) {
		return NotFound
	}
	idx := int(h)
	if r.universe[idx] != key {
		return NotFound
	}
	return idx
}

// Reverse maps a dense index back to its key via direct array lookup.
func (r *Resolver) Reverse(index int) (uint32, bool) {
	if index < 0 || index >= len(r.universe) {
		return 0, false
	}
	return r.universe[index], true
}

// VerifyIntegrity checks U[resolve(k)] == k for every key in the universe
// (spec I3), run once when a store is opened. A mismatch means the
// embedded hash parameters disagree with the embedded universe list —
// a catastrophic, open-aborting condition (spec §7).
func (r *Resolver) VerifyIntegrity() error {
	for i, k := range r.universe {
		if r.exceptionKey != 0 && i == len(r.universe)-1 {
			if k != r.exceptionKey {
				return fmt.Errorf("%w: exception slot mismatch", ErrIntegrity)
			}
			continue
		}
		if r.Resolve(k) != i {
			return fmt.Errorf("%w: key %d at index %d did not round-trip", ErrIntegrity, k, i)
		}
	}
	return nil
}

// Marshal writes the CHD parameter blob (store object cmph_data, spec §6).
// The universe and exception key are persisted separately (meshid_list)
// and passed back into Unmarshal; Marshal only serializes the hash itself.
func (r *Resolver) Marshal(w io.Writer) error {
	_, err := r.hashed.MarshalBinary(w)
	return err
}

// Unmarshal reconstructs a Resolver from a persisted universe list, the
// documented exception key (0 if none), and a cmph_data blob produced by
// Marshal. It re-verifies I3 before returning, since the blob is untrusted
// file content.
func Unmarshal(universe []uint32, exceptionKey uint32, blob []byte) (*Resolver, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("meshid: empty universe")
	}
	hashedLen := len(universe)
	if exceptionKey != 0 {
		hashedLen = len(universe) - 1
	}

	h := &chd.Chd{}
	if err := h.UnmarshalBinaryMmap(blob); err != nil {
		return nil, fmt.Errorf("meshid: unmarshal cmph_data: %w", err)
	}

	r := &Resolver{
		universe:     append([]uint32(nil), universe...),
		hashed:       h,
		hashedLen:    hashedLen,
		exceptionKey: exceptionKey,
	}
	if err := r.VerifyIntegrity(); err != nil {
		return nil, err
	}
	return r, nil
}

// MarshalToBytes is a convenience wrapper around Marshal for callers that
// want an in-memory blob rather than a writer (e.g. a store creation path
// that assembles the whole file object before a single write).
func (r *Resolver) MarshalToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Marshal(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
