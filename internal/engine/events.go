package engine

// EventType classifies one document change notification.
type EventType uint8

const (
	EventEntityCreated    EventType = 1
	EventEntityChanged    EventType = 2
	EventEntityDeleted    EventType = 3
	EventLayersChanged    EventType = 4
	EventOrderChanged     EventType = 5
	EventSelectionChanged EventType = 6
	EventHistoryChanged   EventType = 7
	EventDocumentReset    EventType = 8
	EventOverflow         EventType = 9
)

func (t EventType) String() string {
	switch t {
	case EventEntityCreated:
		return "EntityCreated"
	case EventEntityChanged:
		return "EntityChanged"
	case EventEntityDeleted:
		return "EntityDeleted"
	case EventLayersChanged:
		return "LayersChanged"
	case EventOrderChanged:
		return "OrderChanged"
	case EventSelectionChanged:
		return "SelectionChanged"
	case EventHistoryChanged:
		return "HistoryChanged"
	case EventDocumentReset:
		return "DocumentReset"
	case EventOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// ChangeMask bits for EntityChanged events.
const (
	ChangeGeometry uint32 = 1 << 0
	ChangeStyle    uint32 = 1 << 1
	ChangeBounds   uint32 = 1 << 2
	ChangeFlags    uint32 = 1 << 3
	ChangeLayer    uint32 = 1 << 4
)

// Event is one entry in the document event queue. EntityID and ChangeMask
// are meaningful only for the entity-scoped types. Generation is a
// monotonic per-document counter; a gap after resync means events were
// dropped.
type Event struct {
	Type       EventType
	EntityID   uint32
	ChangeMask uint32
	Generation uint64
}

// eventRing is a bounded pending-event queue. When it fills, everything
// pending collapses into a single Overflow event and further pushes are
// dropped until the consumer acknowledges the resync. Single-goroutine
// access only.
type eventRing struct {
	pending  []Event
	limit    int
	overflow bool
	gen      uint64
}

func newEventRing(limit int) *eventRing {
	if limit <= 0 {
		limit = 256
	}
	return &eventRing{limit: limit}
}

func (r *eventRing) push(ev Event) {
	if r.overflow {
		return
	}
	r.gen++
	ev.Generation = r.gen
	if len(r.pending) >= r.limit {
		r.pending = r.pending[:0]
		r.overflow = true
		r.pending = append(r.pending, Event{Type: EventOverflow, Generation: r.gen})
		return
	}
	r.pending = append(r.pending, ev)
}

// drain hands out the pending events and empties the queue. The overflow
// flag stays up until ack, so new events keep getting dropped while the
// consumer rebuilds its view.
func (r *eventRing) drain() []Event {
	if len(r.pending) == 0 {
		return nil
	}
	out := r.pending
	r.pending = nil
	return out
}

func (r *eventRing) ack() {
	r.overflow = false
}
