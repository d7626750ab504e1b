package board

import "sort"

// Sequenced is implemented by the entities kept in dense position order:
// cards within a list and lists within a board.
type Sequenced[T any] interface {
	Key() string
	Pos() int
	WithPos(int) T
}

func (c Card) Key() string { return c.ID }
func (c Card) Pos() int { return c.Position }
func (c Card) WithPos(p int) Card { c.Position = p; return c }
func (l List) Key() string { return l.ID }
func (l List) Pos() int { return l.Position }
func (l List) WithPos(p int) List { l.Position = p; return l }

// Renumber returns a copy of items whose positions equal their index.
func Renumber[T Sequenced[T]](items []T) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[i] = it.WithPos(i)
	}
	return out
}

// SortByPosition returns a stably sorted copy of items and renumbers it.
func SortByPosition[T Sequenced[T]](items []T) []T {
	out := append(make([]T, 0, len(items)), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos() < out[j].Pos() })
	return Renumber(out)
}

// RemoveByID drops every entity with the given key and renumbers the
// rest. The first removed entity is returned with its old position.
func RemoveByID[T Sequenced[T]](items []T, key string) ([]T, T, bool) {
	var removed T
	found := false
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.Key() == key {
			if !found {
				removed, found = it, true
			}
			continue
		}
		out = append(out, it)
	}
	if !found {
		return items, removed, false
	}
	return Renumber(out), removed, true
}

// InsertAt places item at index, clamped to [0, len(items)], and renumbers.
func InsertAt[T Sequenced[T]](items []T, item T, index int) []T {
	index = clamp(index, 0, len(items))
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	out = append(out, items[index:]...)
	return Renumber(out)
}

// Upsert replaces the entity sharing item's key, or adds item, placing it
// at the index its position names among the others (clamped) and
// renumbering. Positions coming from the server are dense indexes, so this
// matches the server's order even when the local neighbours still carry
// their pre-change positions. Repeated upserts of the same value produce
// the same sequence.
func Upsert[T Sequenced[T]](items []T, item T) []T {
	rest := make([]T, 0, len(items)+1)
	for _, it := range items {
		if it.Key() != item.Key() {
			rest = append(rest, it)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Pos() < rest[j].Pos() })
	return InsertAt(rest, item, item.Pos())
}

func indexOf[T Sequenced[T]](items []T, key string) int {
	for i, it := range items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
