package comic

import (
	"fmt"
	"strings"
)

// Event is a named stimulus that may cause a lifecycle transition.
type Event string

const (
	EventReady            Event = "ready"
	EventRescan           Event = "rescan"
	EventContentsLoaded   Event = "contentsLoaded"
	EventDetailsUpdated   Event = "detailsUpdated"
	EventScraped          Event = "scraped"
	EventMetadataCleared  Event = "metadataCleared"
	EventRecreateArchive  Event = "recreateArchive"
	EventArchiveRecreated Event = "archiveRecreated"
	EventConsolidate      Event = "consolidate"
	EventMarkMissing      Event = "markMissing"
	EventMarkFound        Event = "markFound"
	EventDelete           Event = "delete"
	EventUndelete         Event = "undelete"
	EventPurge            Event = "purge"
)

var allEvents = []Event{
	EventReady,
	EventRescan,
	EventContentsLoaded,
	EventDetailsUpdated,
	EventScraped,
	EventMetadataCleared,
	EventRecreateArchive,
	EventArchiveRecreated,
	EventConsolidate,
	EventMarkMissing,
	EventMarkFound,
	EventDelete,
	EventUndelete,
	EventPurge,
}

var eventsByFold = func() map[string]Event {
	set := make(map[string]Event, len(allEvents))
	for _, event := range allEvents {
		set[strings.ToLower(string(event))] = event
	}
	return set
}()

// AllEvents returns every lifecycle event in declaration order.
func AllEvents() []Event {
	return append([]Event(nil), allEvents...)
}

// ParseEvent resolves an event name case-insensitively.
func ParseEvent(value string) (Event, error) {
	event, ok := eventsByFold[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("unknown comic event %q", value)
	}
	return event, nil
}

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	known, ok := eventsByFold[strings.ToLower(string(e))]
	return ok && known == e
}
