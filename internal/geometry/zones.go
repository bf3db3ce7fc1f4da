package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"toperty/server/internal/models"
)

// ConvexHull returns the closed convex hull of points, or nil when fewer
// than three non-collinear points are given.
func ConvexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		return nil
	}
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p[0], p[1])
	}
	poly, ok := xy.ConvexHull(geom.NewMultiPointFlat(geom.XY, flat)).(*geom.Polygon)
	if !ok || poly.NumLinearRings() == 0 {
		return nil
	}

	coords := poly.LinearRing(0).Coords()
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, orb.Point{c.X(), c.Y()})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil
	}
	return ring
}

// ZoneFeature renders a zone as a GeoJSON feature. The outline is the hull
// of the member listings when one exists, otherwise the zone bounds; a zone
// whose bounds collapse to a point becomes a Point at its center.
func ZoneFeature(zone models.ZoneSummary, members []orb.Point) *geojson.Feature {
	var (
		shape    orb.Geometry
		hullType string
	)
	bound := orb.Bound{
		Min: orb.Point{zone.Bounds.MinLng, zone.Bounds.MinLat},
		Max: orb.Point{zone.Bounds.MaxLng, zone.Bounds.MaxLat},
	}
	if hull := ConvexHull(members); hull != nil {
		shape, hullType = orb.Polygon{hull}, "convex"
	} else if bound.Min[0] < bound.Max[0] && bound.Min[1] < bound.Max[1] {
		shape, hullType = bound.ToPolygon(), "bounds"
	} else {
		shape, hullType = orb.Point{zone.CenterLng, zone.CenterLat}, "point"
	}

	feature := geojson.NewFeature(shape)
	feature.ID = zone.ID
	feature.Properties = geojson.Properties{
		"id":                zone.ID,
		"name":              zone.Name,
		"city_name":         zone.CityName,
		"property_count":    zone.PropertyCount,
		"center_lat":        zone.CenterLat,
		"center_lng":        zone.CenterLng,
		"sale_price_m2":     zone.SalePriceM2,
		"rent_price_m2":     zone.RentPriceM2,
		"sale_valorization": zone.SaleValorization,
		"rent_valorization": zone.RentValorization,
		"cap_rate":          zone.CapRate,
		"hull_type":         hullType,
	}
	return feature
}

// ZoneCollection builds the feature collection for zones, in order.
// members maps zone id to the coordinates of its listings.
func ZoneCollection(zones []models.ZoneSummary, members map[string][]orb.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		fc.Append(ZoneFeature(z, members[z.ID]))
	}
	return fc
}
