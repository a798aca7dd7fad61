package parking

import "time"

type Lot struct {
	ID          string    `json:"parking_lot_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	TotalFloors int       `json:"total_floors"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Floor keeps the aggregate occupancy of its slots. AllottedSlots is only
// changed by the inventory as a side effect of a claim or release.
type Floor struct {
	ID            string `json:"floor_id"`
	Number        int    `json:"floor_no"`
	TotalSlots    int    `json:"total_slots"`
	AllottedSlots int    `json:"allotted_slots"`
	LotID         string `json:"parking_lot_id"`
}

func (f *Floor) AvailableSlots() int {
	return f.TotalSlots - f.AllottedSlots
}
