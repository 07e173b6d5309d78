package tele

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatString(t *testing.T) {
	t.Parallel()

	s := &Stat{}
	s.init()
	assert.Contains(t, s.String(), "last-opened=never")

	s.Lock()
	s.Opened = 2
	s.RejectIntegrity = 1
	s.Unlock()
	s.LastOpened.SetNow()
	out := s.String()
	assert.Contains(t, out, "opened=2")
	assert.Contains(t, out, "integrity=1")
	assert.Contains(t, out, "ago")
}
