package nem

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRegion indicates a region code outside the NEM.
var ErrUnknownRegion = errors.New("unknown NEM region")

// Region identifies one of the five NEM price regions.
type Region string

const (
	RegionNSW Region = "NSW1"
	RegionQLD Region = "QLD1"
	RegionVIC Region = "VIC1"
	RegionSA  Region = "SA1"
	RegionTAS Region = "TAS1"
)

var regionNames = map[Region]string{
	RegionNSW: "New South Wales",
	RegionQLD: "Queensland",
	RegionVIC: "Victoria",
	RegionSA:  "South Australia",
	RegionTAS: "Tasmania",
}

// AEST is the market time standard. NEMWEB stamps every report in UTC+10,
// even while the southern states observe daylight saving.
var AEST = time.FixedZone("AEST", 10*60*60)

const timestampLayout = "2006/01/02 15:04:05"

// ParseRegion validates and normalises a region code.
func ParseRegion(code string) (Region, error) {
	region := Region(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := regionNames[region]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}
	return region, nil
}

// Regions lists the NEM region codes in market order.
func Regions() []Region {
	return []Region{RegionNSW, RegionQLD, RegionVIC, RegionSA, RegionTAS}
}

// Name returns the state name for the region.
func (r Region) Name() string { return regionNames[r] }

// Valid reports whether the region is a known NEM code.
func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

// ParseTimestamp parses a NEMWEB report timestamp (yyyy/mm/dd hh:mm:ss) as AEST.
func ParseTimestamp(value string) (time.Time, error) {
	ts, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(value), AEST)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse market timestamp: %w", err)
	}
	return ts, nil
}
