// Package format implements the Format Set: the (fourcc, modifier) pairs a
// plane or rendering strategy can use, and the intersection/substitution
// operations the Strategy Selector needs to pick a mutually-supported
// format (§2 "Format Set", §4.2).
package format

import "github.com/crznic/kmscore/internal/kms"

// Set is an immutable collection of supported (fourcc, modifier) pairs.
type Set struct {
	pairs map[kms.FourCCMod]struct{}
	order []kms.FourCCMod // preserves insertion order for deterministic preference
}

// New builds a Set from a plane or GBM-reported format list.
func New(pairs ...kms.FourCCMod) *Set {
	s := &Set{pairs: make(map[kms.FourCCMod]struct{}, len(pairs))}
	for _, p := range pairs {
		if _, ok := s.pairs[p]; !ok {
			s.order = append(s.order, p)
			s.pairs[p] = struct{}{}
		}
	}
	return s
}

// Has reports whether (fourcc, modifier) is a member.
func (s *Set) Has(fourcc uint32, modifier uint64) bool {
	_, ok := s.pairs[kms.FourCCMod{FourCC: fourcc, Modifier: modifier}]
	return ok
}

// Len returns the number of distinct pairs.
func (s *Set) Len() int { return len(s.order) }

// Pairs returns the set's members in insertion order.
func (s *Set) Pairs() []kms.FourCCMod {
	out := make([]kms.FourCCMod, len(s.order))
	copy(out, s.order)
	return out
}

// Intersect returns the pairs present in both s and other, preserving s's
// order — the core operation the Strategy Selector uses to find a format
// both the renderer's allocator and the plane agree on.
func (s *Set) Intersect(other *Set) *Set {
	out := &Set{pairs: make(map[kms.FourCCMod]struct{})}
	for _, p := range s.order {
		if _, ok := other.pairs[p]; ok {
			out.pairs[p] = struct{}{}
			out.order = append(out.order, p)
		}
	}
	return out
}

// ModifiersFor returns every modifier paired with fourcc in the set.
func (s *Set) ModifiersFor(fourcc uint32) []uint64 {
	var mods []uint64
	for _, p := range s.order {
		if p.FourCC == fourcc {
			mods = append(mods, p.Modifier)
		}
	}
	return mods
}

// WithoutModifier returns a copy of s with every pair using mod removed —
// used to drop a modifier a plane has blacklisted for async flips (§4.2).
func (s *Set) WithoutModifier(mod uint64) *Set {
	out := &Set{pairs: make(map[kms.FourCCMod]struct{})}
	for _, p := range s.order {
		if p.Modifier == mod {
			continue
		}
		out.pairs[p] = struct{}{}
		out.order = append(out.order, p)
	}
	return out
}

// PreferredOrder ranks candidates by fourcc preference, returning the
// subset of s's pairs matching each preferred fourcc in order, then any
// remaining pairs. Used by the Strategy Selector's format-selection
// preference order (SPEC_FULL §"Domain stack", spec §4.2).
func (s *Set) PreferredOrder(preferredFourCCs ...uint32) []kms.FourCCMod {
	seen := make(map[kms.FourCCMod]bool)
	var out []kms.FourCCMod
	for _, fc := range preferredFourCCs {
		for _, p := range s.order {
			if p.FourCC == fc && !seen[p] {
				out = append(out, p)
				seen[p] = true
			}
		}
	}
	for _, p := range s.order {
		if !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	return out
}
