package session

type NoticeKind string

const (
	// Modal: removed from the queue for not accepting in time.
	NoticeAcceptFailed NoticeKind = "acceptFailed"
	NoticeLoadFailed   NoticeKind = "loadFailed"
	NoticeDraftCancel  NoticeKind = "draftCancelled"
	NoticeLockInFailed NoticeKind = "lockInFailed"
	NoticeChatFailed   NoticeKind = "chatFailed"
	NoticeMention      NoticeKind = "mention"
)

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message,omitempty"`
	// Transient notices are snackbars; the rest need dismissal.
	Transient bool `json:"transient"`
}

type Notifier interface {
	Notify(Notice)
}

type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}
