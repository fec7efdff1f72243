package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tandem/types"
)

// Politeness is the screen-reader live-region politeness of an
// announcement.
type Politeness string

const (
	// PolitenessPolite queues behind current speech.
	PolitenessPolite Politeness = "polite"
	// PolitenessAssertive interrupts current speech.
	PolitenessAssertive Politeness = "assertive"
)

// DefaultAnnouncementTTL is how long an announcement stays current
// before it is swept.
const DefaultAnnouncementTTL = time.Second

// Announcement is one screen-reader message.
type Announcement struct {
	ID         string        `json:"id"`
	Message    string        `json:"message"`
	Politeness Politeness    `json:"politeness"`
	Channel    types.Channel `json:"channel,omitempty"`
	At         time.Time     `json:"at"`
}

// announcer holds the current screen-reader announcements. Expired
// entries are swept lazily on read, so the announcer needs no timer
// goroutine and stays deterministic under an injected clock.
type announcer struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	newID   func() string
	current []Announcement
}

func newAnnouncer(ttl time.Duration, now func() time.Time, newID func() string) *announcer {
	if ttl <= 0 {
		ttl = DefaultAnnouncementTTL
	}
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &announcer{ttl: ttl, now: now, newID: newID}
}

// announce appends a message and returns it.
func (a *announcer) announce(message string, politeness Politeness, ch types.Channel) Announcement {
	ann := Announcement{
		ID:         a.newID(),
		Message:    message,
		Politeness: politeness,
		Channel:    ch,
		At:         a.now(),
	}
	a.mu.Lock()
	a.sweepLocked()
	a.current = append(a.current, ann)
	a.mu.Unlock()
	return ann
}

// active returns the unexpired announcements in arrival order.
func (a *announcer) active() []Announcement {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked()
	return append([]Announcement(nil), a.current...)
}

func (a *announcer) sweepLocked() {
	cutoff := a.now().Add(-a.ttl)
	kept := a.current[:0]
	for _, ann := range a.current {
		if ann.At.After(cutoff) {
			kept = append(kept, ann)
		}
	}
	a.current = kept
}
