package questions

import (
	"sync"

	"hideseek/internal/apperr"
)

// Slot is one consumable question of a given type. A nil DistanceM marks
// the custom slot, whose distance the seeker supplies when asking.
type Slot struct {
	DistanceM *float64 `json:"distance_m"`
	Spent     bool     `json:"spent"`
}

func FixedSlot(distanceM float64) Slot {
	return Slot{DistanceM: &distanceM}
}

func CustomSlot() Slot {
	return Slot{}
}

// Inventory is a game's per-type slot lists. Slot indexes are stable;
// spending a slot marks it rather than removing it, so a spent slot can
// never be re-asked under a shifted index.
type Inventory struct {
	mu           sync.Mutex
	radars       []Slot
	thermometers []Slot
}

func NewInventory(radars, thermometers []Slot) *Inventory {
	return &Inventory{
		radars:       append([]Slot(nil), radars...),
		thermometers: append([]Slot(nil), thermometers...),
	}
}

// DefaultInventory mirrors the standard ruleset: three fixed radars plus
// a custom one, two fixed thermometers plus a custom one.
func DefaultInventory() *Inventory {
	return NewInventory(
		[]Slot{FixedSlot(500), FixedSlot(1000), FixedSlot(2000), CustomSlot()},
		[]Slot{FixedSlot(500), FixedSlot(1000), CustomSlot()},
	)
}

// Consume spends the slot and returns its effective distance. Custom
// slots require a positive caller-supplied distance.
func (inv *Inventory) Consume(qtype Type, index int, customDistanceM *float64) (float64, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	slots := inv.slotsFor(qtype)
	if slots == nil {
		return 0, apperr.Validationf("unknown question type %q", qtype)
	}
	if index < 0 || index >= len(slots) {
		return 0, apperr.Validationf("invalid slot index %d", index)
	}
	slot := &slots[index]
	if slot.Spent {
		return 0, apperr.Conflictf("%s slot %d is already spent", qtype, index)
	}

	distance := 0.0
	if slot.DistanceM != nil {
		distance = *slot.DistanceM
	} else {
		if customDistanceM == nil {
			return 0, apperr.Validationf("custom_distance_m is required for custom slots")
		}
		if *customDistanceM <= 0 {
			return 0, apperr.Validationf("custom_distance_m must be positive")
		}
		distance = *customDistanceM
	}

	slot.Spent = true
	return distance, nil
}

// Slots returns a snapshot of the slot list for a type.
func (inv *Inventory) Slots(qtype Type) []Slot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]Slot(nil), inv.slotsFor(qtype)...)
}

func (inv *Inventory) slotsFor(qtype Type) []Slot {
	switch qtype {
	case TypeRadar:
		return inv.radars
	case TypeThermometer:
		return inv.thermometers
	}
	return nil
}
