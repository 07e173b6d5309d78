package tele

import (
	"fmt"
	"sync"
	"time"

	"github.com/temoto/atomic_clock"
)

// Counters over envelope traffic. Updated at any time, read by the
// operator `status` command.
type Stat struct { //nolint:maligned
	sync.Mutex
	Sealed          uint32
	Opened          uint32
	RejectMalformed uint32
	RejectIntegrity uint32
	RejectPadding   uint32
	RejectParse     uint32

	LastOpened *atomic_clock.Clock
}

func (s *Stat) init() {
	s.LastOpened = atomic_clock.New()
}

func (s *Stat) String() string {
	s.Lock()
	defer s.Unlock()
	last := "never"
	if !s.LastOpened.IsZero() {
		last = atomic_clock.Since(s.LastOpened).Truncate(time.Second).String() + " ago"
	}
	return fmt.Sprintf("sealed=%d opened=%d rejected: malformed=%d integrity=%d padding=%d parse=%d last-opened=%s",
		s.Sealed, s.Opened, s.RejectMalformed, s.RejectIntegrity, s.RejectPadding, s.RejectParse, last)
}
