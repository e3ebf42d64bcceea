package types

// NoticeLevel classifies a transient user notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notifier shows a dismissable, non-blocking notice to the user.
type Notifier interface {
	Notify(level NoticeLevel, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level NoticeLevel, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level NoticeLevel, message string) { f(level, message) }

// DiscardNotices is a Notifier that drops every notice.
var DiscardNotices Notifier = NotifierFunc(func(NoticeLevel, string) {})
