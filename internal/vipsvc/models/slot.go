package models

// Slot state values follow the legacy pool schema: stato = 1 means the
// pre-printed card is still free, 0 means it has been handed out.
const (
	SlotAvailable = 1
	SlotAssigned  = 0
)

// CardSlot is one pre-provisioned loyalty card row in a store pool.
// Column names in the pool tables are the legacy Italian ones (idvip,
// cellulare, nome, ...); the struct keeps English names.
type CardSlot struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Phone      string `json:"phone,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	State      int    `json:"state"`
}

func (s *CardSlot) Assigned() bool {
	return s.State == SlotAssigned
}
