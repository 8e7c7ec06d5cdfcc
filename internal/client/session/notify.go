package session

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

const (
	SessionExpiredMessage = "Session expired. Please log in again."
	LoginPath             = "/login"
)

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(kind NoticeKind, message string)
}

// Navigator moves the user to another client route.
type Navigator interface {
	Navigate(path string)
}

type NotifierFunc func(kind NoticeKind, message string)

func (f NotifierFunc) Notify(kind NoticeKind, message string) { f(kind, message) }

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type nopNotifier struct{}

func (nopNotifier) Notify(NoticeKind, string) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
