package connectivity

import (
	"sync"
	"time"
)

// NoticeKind identifies a connectivity notice.
type NoticeKind string

const (
	NoticeOffline NoticeKind = "offline"
	NoticeOnline  NoticeKind = "online"
)

const (
	// OfflineNoticeDuration is how long the offline notice stays up.
	OfflineNoticeDuration = 5 * time.Second
	// OnlineNoticeDuration is how long the back-online notice stays up.
	OnlineNoticeDuration = 3 * time.Second
)

// Notice is a transient, user-visible connectivity message.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Notices turns connectivity transitions into transient notices for the UI.
// A new transition always replaces the current notice.
type Notices struct {
	mu          sync.Mutex
	current     *Notice
	now         func() time.Time
	onNotice    func(Notice)
	unsubscribe func()
}

// NoticesOption configures Notices.
type NoticesOption func(*Notices)

// WithNoticesClock sets a custom clock function (for testing).
func WithNoticesClock(fn func() time.Time) NoticesOption {
	return func(n *Notices) { n.now = fn }
}

// WithNoticeHandler registers fn to receive every issued notice.
func WithNoticeHandler(fn func(Notice)) NoticesOption {
	return func(n *Notices) { n.onNotice = fn }
}

// NewNotices subscribes to state. Call Close to stop listening.
func NewNotices(state State, opts ...NoticesOption) *Notices {
	n := &Notices{now: time.Now}
	for _, o := range opts {
		o(n)
	}
	n.unsubscribe = state.Subscribe(n.handle)
	return n
}

func (n *Notices) handle(online bool) {
	now := n.now()
	notice := Notice{
		Kind:      NoticeOffline,
		Message:   "You are offline. Previously downloaded questions are still available.",
		IssuedAt:  now,
		ExpiresAt: now.Add(OfflineNoticeDuration),
	}
	if online {
		notice = Notice{
			Kind:      NoticeOnline,
			Message:   "You are back online.",
			IssuedAt:  now,
			ExpiresAt: now.Add(OnlineNoticeDuration),
		}
	}

	n.mu.Lock()
	n.current = &notice
	handler := n.onNotice
	n.mu.Unlock()

	if handler != nil {
		handler(notice)
	}
}

// Current returns the active notice, if one has not yet expired.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || !n.now().Before(n.current.ExpiresAt) {
		return Notice{}, false
	}
	return *n.current, true
}

// Close stops listening for transitions.
func (n *Notices) Close() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
}
