package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() BookingConfirmedEvent {
	return BookingConfirmedEvent{
		ReservationID: 7,
		Reference:     "RES-0A1B2C3D",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		DepartsAt:     "2026-03-01T08:00:00Z",
		ArrivesAt:     "2026-03-01T10:30:00Z",
		FareClass:     "STANDARD",
		SeatLabels:    []string{"STD-1", "STD-2"},
		TotalAmount:   20000,
		BonusEarned:   []string{"BONUS-DEADBEEF"},
	}
}

func TestRenderConfirmation(t *testing.T) {
	subject, body := RenderConfirmation(sampleEvent())
	assert.Equal(t, "Booking confirmation RES-0A1B2C3D", subject)
	assert.Contains(t, body, "Hello Ada")
	assert.Contains(t, body, "Seats: STD-1, STD-2")
	assert.Contains(t, body, "Total: 20000")
	assert.Contains(t, body, "BONUS-DEADBEEF")
	assert.NotContains(t, body, "was applied")
}

func TestHandleWritesToMailbox(t *testing.T) {
	dir := t.TempDir()
	c := NewConsumer("", FileMailbox{Dir: dir}, nil)
	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))

	out, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "To: ada@example.com")
	assert.Equal(t, 2, strings.Count(string(out), "Subject: Booking confirmation RES-0A1B2C3D"))
}

func TestHandleRejectsBadPayloads(t *testing.T) {
	c := NewConsumer("", FileMailbox{Dir: t.TempDir()}, nil)
	assert.Error(t, c.Handle([]byte("{not json")))

	ev := sampleEvent()
	ev.CustomerEmail = ""
	body, _ := json.Marshal(ev)
	assert.Error(t, c.Handle(body))
}
