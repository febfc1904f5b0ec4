package domain

import "time"

// Client is a customer company.
type Client struct {
	Code        string
	CompanyName string
	Contact     *string
	Phone       *string
	Email       *string
	CreatedAt   time.Time

	// Filled on reads.
	ContractCount int
	TicketCount   int
}

// Contract is a service contract covering a client's equipment.
type Contract struct {
	ID           string
	ClientCode   string
	ContractType string
	SerialNumber *string
	CreatedAt    time.Time

	TicketCount int
}
