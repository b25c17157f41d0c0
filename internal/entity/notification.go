package entity

import "fmt"

// MimeNotification classifies user-visible notifications.
const MimeNotification = "x-leechcraft/notification"

// Additional keys carried by notification entities.
const (
	KeyHeader   = "Header"
	KeyText     = "Text"
	KeyPriority = "Priority"
	KeySender   = "org.LC.AdvNotifications.SenderID"
)

// Priority grades how urgent a notification is.
type Priority int

const (
	PInfo Priority = iota
	PWarning
	PCritical
)

func (p Priority) String() string {
	switch p {
	case PInfo:
		return "info"
	case PWarning:
		return "warning"
	case PCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// MakeNotification builds an internal notification entity.
func MakeNotification(header, text string, priority Priority) Entity {
	e := MakeEntity(header, "", DoNotSaveInHistory|AutoAccept, MimeNotification)
	e.Additional[KeyHeader] = header
	e.Additional[KeyText] = text
	e.Additional[KeyPriority] = priority
	return e
}

// NotificationPriority extracts the priority of a notification entity. Values
// that went through a JSON round trip arrive as float64 and are accepted too.
func (e Entity) NotificationPriority() Priority {
	switch v := e.Additional[KeyPriority].(type) {
	case Priority:
		return v
	case int:
		return Priority(v)
	case float64:
		return Priority(int(v))
	default:
		return PInfo
	}
}

// IsNotification reports whether e carries a notification.
func (e Entity) IsNotification() bool {
	return e.Mime == MimeNotification
}
