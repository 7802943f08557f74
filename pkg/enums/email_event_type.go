package enums

// EmailEventType classifies rows in the append-only email event log.
type EmailEventType string

const (
	EmailEventSent      EmailEventType = "sent"
	EmailEventOpened    EmailEventType = "opened"
	EmailEventClicked   EmailEventType = "clicked"
	EmailEventCompleted EmailEventType = "completed"
)

func (t EmailEventType) Valid() bool {
	switch t {
	case EmailEventSent, EmailEventOpened, EmailEventClicked, EmailEventCompleted:
		return true
	default:
		return false
	}
}
