package service

import (
	"strings"

	"dione/internal/models"
)

// DispatchPolicy decides whether a rider may see and act on a pickup or
// delivery target. Listing and mutation paths share the same policy so a
// rider can never accept work they could not see.
type DispatchPolicy struct{}

// OnActiveShift reports whether the availability value counts as an active
// shift. The named shifts are active; legacy "available"/"on-duty" rows map
// to active and legacy "off-duty" maps to off.
func (DispatchPolicy) OnActiveShift(availability string) bool {
	switch strings.ToLower(strings.TrimSpace(availability)) {
	case models.ShiftDay, models.ShiftSwing, models.ShiftNight:
		return true
	case "available", "on-duty":
		return true
	case models.ShiftOff, "off-duty", "":
		return false
	default:
		return false
	}
}

// CoverageTarget is the locale of a pickup or delivery destination.
type CoverageTarget struct {
	City     string
	Province string
	Address  string
}

// TargetFromAddress derives a coverage target from an order's shipping
// address.
func TargetFromAddress(addr *models.ShippingAddress) CoverageTarget {
	return CoverageTarget{
		City:     addr.City,
		Province: addr.State,
		Address:  addr.Address,
	}
}

// tokens returns the comparable pieces of the target: city, province and the
// comma-separated segments of the street address.
func (t CoverageTarget) tokens() []string {
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	add(t.City)
	add(t.Province)
	for _, segment := range strings.Split(t.Address, ",") {
		add(segment)
	}
	return out
}

// zones returns the rider's configured coverage areas: the comma-separated
// pieces of current_location plus delivery_zones.
func riderZones(profile *models.RiderProfile) []string {
	var out []string
	for _, raw := range []string{profile.CurrentLocation, profile.DeliveryZones} {
		for _, zone := range strings.Split(raw, ",") {
			zone = strings.ToLower(strings.TrimSpace(zone))
			if zone != "" {
				out = append(out, zone)
			}
		}
	}
	return out
}

// Covers reports whether the rider's zones reach the target. A rider with no
// coverage configured matches everything; otherwise some zone must contain
// some target token, case-insensitively.
func (DispatchPolicy) Covers(profile *models.RiderProfile, target CoverageTarget) bool {
	zones := riderZones(profile)
	if len(zones) == 0 {
		return true
	}

	for _, zone := range zones {
		for _, token := range target.tokens() {
			if strings.Contains(zone, token) {
				return true
			}
		}
	}
	return false
}

// Visible combines the shift gate with the coverage match.
func (p DispatchPolicy) Visible(profile *models.RiderProfile, target CoverageTarget) bool {
	return p.OnActiveShift(profile.AvailabilityStatus) && p.Covers(profile, target)
}
