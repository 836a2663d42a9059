package broadcast

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is a processing update for one record. Progress events carry
// Progress and StageLabel; a completed event carries SensitivityState; a
// failed event carries Error.
type Event struct {
	Type             EventType `json:"type"`
	RecordID         string    `json:"recordId"`
	Progress         int       `json:"progress,omitempty"`
	StageLabel       string    `json:"stageLabel,omitempty"`
	SensitivityState string    `json:"sensitivityState,omitempty"`
	Error            string    `json:"error,omitempty"`
}

func ProgressEvent(recordID string, progress int, label string) Event {
	return Event{Type: EventProgress, RecordID: recordID, Progress: progress, StageLabel: label}
}

func CompletedEvent(recordID, sensitivity string) Event {
	return Event{Type: EventCompleted, RecordID: recordID, Progress: 100, SensitivityState: sensitivity}
}

func FailedEvent(recordID, reason string) Event {
	return Event{Type: EventFailed, RecordID: recordID, Error: reason}
}

// Terminal reports whether no further events follow for the record.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}
