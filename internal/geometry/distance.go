package geometry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius is the mean Earth radius in meters used for all distances.
const EarthRadius = 6371000.0

// Unreachable is returned when a distance cannot be computed. It sorts
// after every real distance and fails every radius test.
var Unreachable = math.Inf(1)

// Distance returns the haversine distance in whole meters between two
// points given in degrees. Coordinates may be numbers or numeric strings;
// anything else yields Unreachable.
func Distance(lat1, lng1, lat2, lng2 interface{}) float64 {
	var c [4]float64
	for i, v := range []interface{}{lat1, lng1, lat2, lng2} {
		f, ok := toFloat(v)
		if !ok {
			return Unreachable
		}
		c[i] = f
	}
	return PointDistance(orb.Point{c[1], c[0]}, orb.Point{c[3], c[2]})
}

// PointDistance is Distance for orb points ([lng, lat]).
func PointDistance(a, b orb.Point) float64 {
	// orb uses the equatorial radius; the result is linear in the radius.
	d := math.Round(geo.DistanceHaversine(a, b) * EarthRadius / orb.EarthRadius)
	if math.IsNaN(d) {
		return Unreachable
	}
	return d
}

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case *float64:
		if t == nil {
			return 0, false
		}
		f = *t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
