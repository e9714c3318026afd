package economy

import (
	"errors"
	"fmt"
	"time"

	"github.com/huddlelabs/huddle/model"
)

// ErrBadItemDefinition means a store item's payload columns do not satisfy
// its declared type (admin data error, not a member-facing failure).
var ErrBadItemDefinition = errors.New("malformed store item definition")

// Slot names one cosmetic equip position on a member. Each slot holds at
// most one value; equipping replaces, it never stacks.
type Slot string

const (
	SlotNameColor   Slot = "name_color"
	SlotTitle       Slot = "title"
	SlotBanner      Slot = "banner"
	SlotAvatarPulse Slot = "avatar_pulse"
	SlotFrame       Slot = "frame"
)

// Column returns the member table column backing the slot.
func (s Slot) Column() (string, bool) {
	switch s {
	case SlotNameColor:
		return "name_color", true
	case SlotTitle:
		return "title", true
	case SlotBanner:
		return "banner_url", true
	case SlotAvatarPulse:
		return "avatar_pulse_color", true
	case SlotFrame:
		return "frame_url", true
	}
	return "", false
}

// Payload is the resolved, typed variant of a store item. The string
// item_type column is interpreted exactly once, here; the rest of the
// engine switches on these types.
type Payload interface {
	isPayload()
}

// InstantPayload is a one-shot consumable: activating it grants streak
// freezes immediately.
type InstantPayload struct {
	FreezeGrant int
}

// TimedPayload grants a time-boxed XP multiplier on activation.
type TimedPayload struct {
	Duration time.Duration
	Modifier float64
}

// CosmeticPayload occupies one named equip slot.
type CosmeticPayload struct {
	Slot  Slot
	Value string
}

func (InstantPayload) isPayload()  {}
func (TimedPayload) isPayload()    {}
func (CosmeticPayload) isPayload() {}

// ResolvePayload interprets a store item's type-specific columns.
func ResolvePayload(it *model.StoreItem) (Payload, error) {
	switch it.ItemType {
	case model.ItemInstant:
		if it.FreezeGrant <= 0 {
			return nil, fmt.Errorf("%w: instant item %d grants nothing", ErrBadItemDefinition, it.ID)
		}
		return InstantPayload{FreezeGrant: it.FreezeGrant}, nil
	case model.ItemTimedEffect:
		if it.DurationHours <= 0 || it.Modifier <= 1 {
			return nil, fmt.Errorf("%w: timed item %d needs duration and modifier > 1", ErrBadItemDefinition, it.ID)
		}
		return TimedPayload{
			Duration: time.Duration(it.DurationHours) * time.Hour,
			Modifier: it.Modifier,
		}, nil
	case model.ItemNameColor:
		return cosmetic(it, SlotNameColor, it.Color)
	case model.ItemTitle:
		return cosmetic(it, SlotTitle, it.Text)
	case model.ItemBanner:
		return cosmetic(it, SlotBanner, it.ImageURL)
	case model.ItemAvatarPulse:
		return cosmetic(it, SlotAvatarPulse, it.Color)
	case model.ItemFrame:
		return cosmetic(it, SlotFrame, it.ImageURL)
	}
	return nil, fmt.Errorf("%w: item %d has unknown type %q", ErrBadItemDefinition, it.ID, it.ItemType)
}

func cosmetic(it *model.StoreItem, slot Slot, value string) (Payload, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: cosmetic item %d has empty payload", ErrBadItemDefinition, it.ID)
	}
	return CosmeticPayload{Slot: slot, Value: value}, nil
}
