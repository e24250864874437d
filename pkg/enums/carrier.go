package enums

import "fmt"

// Carrier identifies the shipping partner handling a shipment.
type Carrier string

const (
	CarrierChronopost Carrier = "chronopost"
	CarrierColissimo  Carrier = "colissimo"
	CarrierUPS        Carrier = "ups"
	CarrierDHL        Carrier = "dhl"
)

var validCarriers = []Carrier{
	CarrierChronopost,
	CarrierColissimo,
	CarrierUPS,
	CarrierDHL,
}

// String implements fmt.Stringer.
func (c Carrier) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c Carrier) IsValid() bool {
	for _, candidate := range validCarriers {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCarrier converts raw input into a Carrier.
func ParseCarrier(value string) (Carrier, error) {
	for _, candidate := range validCarriers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid carrier %q", value)
}
