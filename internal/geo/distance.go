package geo

import (
	"fmt"
	"math"
)

func toRad(d float64) float64 { return d * math.Pi / 180 }

// DistanceMeters returns the haversine great-circle distance between a and b.
// NaN inputs produce NaN.
func DistanceMeters(a, b Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Scale selects how meters are converted into degree offsets.
type Scale int

const (
	// ScaleFlat divides by MetersPerDegree on both axes and ignores the
	// longitude compression at latitude.
	ScaleFlat Scale = iota
	// ScaleLatitude uses the spherical meters-per-degree and widens the
	// longitude offset by 1/cos(lat).
	ScaleLatitude
)

// ParseScale maps a config value to a Scale.
func ParseScale(s string) (Scale, error) {
	switch s {
	case "", "flat":
		return ScaleFlat, nil
	case "latitude":
		return ScaleLatitude, nil
	}
	return ScaleFlat, fmt.Errorf("unknown spawn scale %q", s)
}

func (s Scale) String() string {
	if s == ScaleLatitude {
		return "latitude"
	}
	return "flat"
}

// RadiusDegrees converts meters to degrees with the flat approximation.
func RadiusDegrees(meters float64) float64 {
	return meters / MetersPerDegree
}

// OffsetDegrees returns the per-axis degree lengths of a meters distance at the
// given position.
func OffsetDegrees(at Coordinate, meters float64, s Scale) (dLat, dLng float64) {
	if s != ScaleLatitude {
		d := RadiusDegrees(meters)
		return d, d
	}
	perDegree := EarthRadiusMeters * math.Pi / 180
	dLat = meters / perDegree
	cos := math.Cos(toRad(at.Lat))
	if cos < 1e-9 {
		return dLat, 360
	}
	return dLat, dLat / cos
}

// FormatMeters renders a distance for display: "—" when unknown, whole meters
// below a kilometre, two decimals in kilometres above.
func FormatMeters(m float64) string {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return "—"
	}
	if m < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(m)))
	}
	return fmt.Sprintf("%.2f km", m/1000)
}
