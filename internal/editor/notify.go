package editor

// Notification kinds surfaced to the user. All of them are transient and
// non-fatal; failures degrade to a message, never to a broken document.
const (
	NoticeEditHint      = "edit-hint"      // instructional, auto-dismiss 5s
	NoticeSaveIndicator = "save-indicator" // dismissible save/restore result
	NoticeSectionAdvice = "section-advice" // one-time layout advisory
	NoticeStorageError  = "storage-error"
)

// Notifier receives transient user-facing messages.
type Notifier interface {
	Notify(kind, message string)
}

// Confirmer gates destructive actions. Declining aborts the operation with
// no state change.
type Confirmer interface {
	Confirm(message string) bool
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string) {}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// AlwaysConfirm approves everything; the default for headless use where no
// interactive prompt exists.
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })
