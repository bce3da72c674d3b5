package lifecycle

import "folio/internal/comic"

var (
	live      = []comic.State{comic.StateUnprocessed, comic.StateStable, comic.StateChanged}
	processed = []comic.State{comic.StateStable, comic.StateChanged}
	tracked   = []comic.State{comic.StateUnprocessed, comic.StateStable, comic.StateChanged, comic.StateDeleted}
)

// DefaultRules returns the comic lifecycle. A zero target means the rule
// keeps the record in its source state.
func DefaultRules() []Rule {
	var rules []Rule
	add := func(sources []comic.State, event comic.Event, target comic.State, guard *Guard, action *Action) {
		for _, source := range sources {
			to := target
			if to == "" {
				to = source
			}
			rules = append(rules, Rule{Source: source, Event: event, Target: to, Guard: guard, Action: action})
		}
	}

	add([]comic.State{comic.StateCreated}, comic.EventReady, comic.StateUnprocessed, nil, nil)
	add(live, comic.EventRescan, comic.StateUnprocessed, nil, ActionResetProcessing)
	add([]comic.State{comic.StateUnprocessed, comic.StateStable}, comic.EventContentsLoaded, comic.StateStable, GuardContentsProcessed, nil)
	add(processed, comic.EventDetailsUpdated, comic.StateChanged, nil, nil)
	add(processed, comic.EventScraped, comic.StateChanged, nil, nil)
	add(processed, comic.EventMetadataCleared, comic.StateChanged, nil, ActionClearMetadata)
	add(processed, comic.EventRecreateArchive, "", GuardNotRecreating, ActionMarkRecreating)
	add(processed, comic.EventArchiveRecreated, comic.StateUnprocessed, nil, ActionResetProcessing)
	add(processed, comic.EventConsolidate, "", GuardConsolidate, ActionApplyFilename)
	add(tracked, comic.EventMarkMissing, "", GuardMarkAsMissing, ActionSetMissing)
	add(tracked, comic.EventMarkFound, "", GuardMarkAsFound, ActionClearMissing)
	add(live, comic.EventDelete, comic.StateDeleted, nil, nil)
	add([]comic.State{comic.StateDeleted}, comic.EventUndelete, comic.StateChanged, nil, nil)
	add([]comic.State{comic.StateDeleted}, comic.EventPurge, comic.StateRemoved, nil, nil)
	return rules
}

// DefaultTable builds the validated default table.
func DefaultTable() *Table {
	table, err := NewTable(DefaultRules())
	if err != nil {
		panic(err)
	}
	return table
}
