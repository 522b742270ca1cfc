package ota

// EventKind names one of the events the Orchestrator publishes.
type EventKind string

const (
	EventUpdateStart       EventKind = "update_start"
	EventUpdateApplied     EventKind = "update_applied"
	EventFileUpdateStart   EventKind = "file_update_start"
	EventFileUpdateDone    EventKind = "file_update_done"
	EventFileUpdateSkip    EventKind = "file_update_skip"
	EventFileUpdateFailed  EventKind = "file_update_failed"
	EventDownloadAttempt   EventKind = "download_attempt"
	EventDownloadRetry     EventKind = "download_retry"
	EventFileDeleteExtra   EventKind = "file_delete_extra"
)

// Event is a single published occurrence. Payload holds whichever subset of
// {path, index, total, from, to, mode, url, attempt, attempts, wait_ms,
// error, policy, correlation_id} applies to Kind.
type Event struct {
	Kind    EventKind
	Payload map[string]any
}

// Sink receives events published during an apply. A nil Sink is valid; the
// Updater treats it as a no-op.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

func (u *Updater) publish(kind EventKind, payload map[string]any) {
	if u.Sink == nil {
		return
	}
	u.Sink.Publish(Event{Kind: kind, Payload: payload})
}
