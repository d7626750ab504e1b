package board

// ApplyLatestCard adopts the server's copy of a card. Every existing copy
// of the id is dropped, whichever list holds it, and latest is placed in
// its own list at its own position. The lists involved are renumbered, so
// exactly one dense copy remains however stale the local state was.
func ApplyLatestCard(s Snapshot, latest Card) Snapshot {
	next := s.clone()
	for listID, cards := range next.CardsByListID {
		if listID == latest.ListID {
			continue
		}
		if rest, _, ok := RemoveByID(cards, latest.ID); ok {
			next.CardsByListID[listID] = rest
		}
	}
	next.CardsByListID[latest.ListID] = Upsert(next.CardsByListID[latest.ListID], latest)
	return next
}
