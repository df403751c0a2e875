package tablebook

import (
	"encoding/json"
	"fmt"
	"time"
)

// ServingMode selects when an order should hit the table, relative to the
// owning reservation's start.
type ServingMode string

const (
	ServingAtStart ServingMode = "at_start"
	ServingPlus15  ServingMode = "plus_15"
	ServingPlus30  ServingMode = "plus_30"
	ServingPlus45  ServingMode = "plus_45"
	ServingPlus60  ServingMode = "plus_60"
	ServingCustom  ServingMode = "custom"
)

var servingOffsets = map[ServingMode]time.Duration{
	ServingAtStart: 0,
	ServingPlus15:  15 * time.Minute,
	ServingPlus30:  30 * time.Minute,
	ServingPlus45:  45 * time.Minute,
	ServingPlus60:  60 * time.Minute,
}

// ServingChoice is a closed variant: one of the fixed offsets, or a custom
// time-of-day that must fall inside the reservation window.
type ServingChoice struct {
	mode       ServingMode
	customTime string
}

// NewServingChoice builds an offset-mode choice. Custom mode requires
// NewCustomServingChoice.
func NewServingChoice(mode ServingMode) (ServingChoice, error) {
	if _, ok := servingOffsets[mode]; !ok {
		return ServingChoice{}, fmt.Errorf("%w: %q", ErrInvalidServingMode, mode)
	}
	return ServingChoice{mode: mode}, nil
}

// NewCustomServingChoice builds a custom-time choice. The time-of-day is
// validated for format here; the window bound is checked at preview build,
// when the owning reservation is known.
func NewCustomServingChoice(timeOfDay string) (ServingChoice, error) {
	if err := parseTimeOfDay(timeOfDay); err != nil {
		return ServingChoice{}, fmt.Errorf("%w: custom time %q", ErrInvalidServingMode, timeOfDay)
	}
	return ServingChoice{mode: ServingCustom, customTime: timeOfDay}, nil
}

// ParseServingChoice maps a wire value onto the closed variant set.
func ParseServingChoice(mode string, customTime string) (ServingChoice, error) {
	if ServingMode(mode) == ServingCustom {
		return NewCustomServingChoice(customTime)
	}
	return NewServingChoice(ServingMode(mode))
}

// Mode returns the selected serving mode.
func (choice ServingChoice) Mode() ServingMode {
	return choice.mode
}

// CustomTime returns the "15:04" payload of a custom choice.
func (choice ServingChoice) CustomTime() string {
	return choice.customTime
}

// Validate enforces the half-open window bound on custom choices. Offset
// modes always pass; an offset past the window end is clamped at fulfillment.
func (choice ServingChoice) Validate(window Window) error {
	if choice.mode != ServingCustom {
		return nil
	}
	serveAt, err := choice.serveAt(window)
	if err != nil {
		return err
	}
	if !window.Contains(serveAt) {
		return fmt.Errorf("%w: %s", ErrServingOutsideWindow, choice.customTime)
	}
	return nil
}

type servingChoiceJSON struct {
	Mode       string `json:"mode"`
	CustomTime string `json:"custom_time,omitempty"`
}

// MarshalJSON encodes the choice for storage and cache payloads.
func (choice ServingChoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(servingChoiceJSON{Mode: string(choice.mode), CustomTime: choice.customTime})
}

// UnmarshalJSON decodes a stored choice through the variant constructors.
func (choice *ServingChoice) UnmarshalJSON(data []byte) error {
	var wire servingChoiceJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	parsed, err := ParseServingChoice(wire.Mode, wire.CustomTime)
	if err != nil {
		return err
	}
	*choice = parsed
	return nil
}

// serveAt resolves the unclamped target serve instant for the window.
func (choice ServingChoice) serveAt(window Window) (time.Time, error) {
	if choice.mode == ServingCustom {
		return CombineDateTime(window.Start.Format(DateLayout), choice.customTime)
	}
	offset, ok := servingOffsets[choice.mode]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidServingMode, choice.mode)
	}
	return window.Start.Add(offset), nil
}
