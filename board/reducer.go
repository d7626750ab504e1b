package board

// ApplyEvent merges one push event into s and returns the resulting
// snapshot. Events for another board and event types this client does not
// know are ignored. Applying the same event twice yields the same snapshot
// as applying it once.
func ApplyEvent(s Snapshot, ev Event) Snapshot {
	if ev.BoardID != s.Board.ID {
		return s
	}

	switch ev.Type {
	case CardCreated, CardUpdated:
		if ev.Card == nil {
			return s
		}
		next := s.clone()
		next.CardsByListID[ev.Card.ListID] = Upsert(next.CardsByListID[ev.Card.ListID], *ev.Card)
		return next

	case CardMoved:
		if ev.Card == nil {
			return s
		}
		next := s.clone()
		if ev.FromListID != ev.Card.ListID {
			if from, ok := next.CardsByListID[ev.FromListID]; ok {
				next.CardsByListID[ev.FromListID], _, _ = RemoveByID(from, ev.Card.ID)
			}
		}
		next.CardsByListID[ev.Card.ListID] = Upsert(next.CardsByListID[ev.Card.ListID], *ev.Card)
		return next

	case CardDeleted:
		from, ok := s.CardsByListID[ev.FromListID]
		if !ok {
			return s
		}
		next := s.clone()
		next.CardsByListID[ev.FromListID], _, _ = RemoveByID(from, ev.CardID)
		return next

	case ListCreated:
		if ev.List == nil {
			return s
		}
		next := s.clone()
		next.Lists = Upsert(next.Lists, *ev.List)
		if _, ok := next.CardsByListID[ev.List.ID]; !ok {
			next.CardsByListID[ev.List.ID] = []Card{}
		}
		return next

	case ListDeleted:
		return RemoveListLocally(s, ev.ListID)
	}

	return s
}
