package jobs

import "folio/internal/comic"

func createdCriteria() comic.Criteria {
	return comic.InStates(comic.StateCreated)
}

func loadContentsCriteria() comic.Criteria {
	return comic.And(
		comic.InStates(comic.StateUnprocessed),
		comic.FlagIs(comic.FlagContentsLoaded, false),
		comic.FlagIs(comic.FlagMissing, false),
	)
}

func markBlockedCriteria() comic.Criteria {
	return comic.And(
		comic.FlagIs(comic.FlagContentsLoaded, true),
		comic.FlagIs(comic.FlagBlockedPagesMarked, false),
		comic.Not(comic.InStates(comic.StateRemoved)),
	)
}

func updateMissingCriteria() comic.Criteria {
	return comic.Not(comic.InStates(comic.StateRemoved))
}

func organizeCriteria() comic.Criteria {
	return comic.And(
		comic.InStates(comic.StateStable, comic.StateChanged),
		comic.FlagIs(comic.FlagMissing, false),
	)
}

func purgeCriteria() comic.Criteria {
	return comic.InStates(comic.StateDeleted)
}
