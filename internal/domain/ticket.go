package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "ABIERTO"
	TicketStatusInProgress TicketStatus = "EN_PROCESO"
	TicketStatusPending    TicketStatus = "PENDIENTE"
	TicketStatusClosed     TicketStatus = "CERRADO"
)

// TicketStatuses lists every ticket status.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusClosed}

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool { return oneOf(s, TicketStatuses) }

// TicketUrgency enumerates how quickly a ticket must be attended.
type TicketUrgency string

const (
	TicketUrgencyLow      TicketUrgency = "BAJA"
	TicketUrgencyNormal   TicketUrgency = "NORMAL"
	TicketUrgencyHigh     TicketUrgency = "ALTA"
	TicketUrgencyCritical TicketUrgency = "CRITICA"
)

// TicketUrgencies lists every urgency from lowest to highest.
var TicketUrgencies = []TicketUrgency{TicketUrgencyLow, TicketUrgencyNormal, TicketUrgencyHigh, TicketUrgencyCritical}

// Valid reports whether u is a known urgency.
func (u TicketUrgency) Valid() bool { return oneOf(u, TicketUrgencies) }

// Ticket is a customer service request identified by a monthly sequenced number.
type Ticket struct {
	Number       string
	ClientCode   string
	TechnicianID *string
	ContractID   *string
	SerialNumber *string
	Detail       *string
	Status       TicketStatus
	Urgency      TicketUrgency
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// IsClosed reports whether the ticket has a closure timestamp.
func (t *Ticket) IsClosed() bool {
	return t.ClosedAt != nil
}

// TicketNumberPrefix returns the monthly prefix, e.g. "T202401-".
func TicketNumberPrefix(at time.Time) string {
	return fmt.Sprintf("T%04d%02d-", at.Year(), int(at.Month()))
}

// FormatTicketNumber builds a ticket number for the given month and sequence.
func FormatTicketNumber(at time.Time, sequence int) string {
	return fmt.Sprintf("%s%04d", TicketNumberPrefix(at), sequence)
}

// TicketNumberLess orders ticket numbers of one month by sequence. Sequences
// past 9999 are longer, so length decides before the text does.
func TicketNumberLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// NextTicketNumber derives the number following latest within the month of at.
// An empty latest starts the month at sequence 1.
func NextTicketNumber(at time.Time, latest string) (string, error) {
	if latest == "" {
		return FormatTicketNumber(at, 1), nil
	}
	prefix := TicketNumberPrefix(at)
	if !strings.HasPrefix(latest, prefix) {
		return "", fmt.Errorf("ticket number %q outside month %s", latest, prefix)
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(latest, prefix))
	if err != nil {
		return "", fmt.Errorf("parse ticket sequence %q: %w", latest, err)
	}
	return FormatTicketNumber(at, seq+1), nil
}
