package render

import "github.com/paulmach/orb"

// cloneGeometry creates a deep copy of geometry.
// The Douglas-Peucker simplifier rewrites its input in place, and the source
// collections belong to the map state store.
func cloneGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return orb.Point{geom[0], geom[1]}

	case orb.MultiPoint:
		clone := make(orb.MultiPoint, len(geom))
		copy(clone, geom)
		return clone

	case orb.LineString:
		return cloneLine(geom)

	case orb.MultiLineString:
		clone := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			clone[i] = cloneLine(ls)
		}
		return clone

	case orb.Ring:
		return orb.Ring(cloneLine(orb.LineString(geom)))

	case orb.Polygon:
		return clonePolygon(geom)

	case orb.MultiPolygon:
		clone := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			clone[i] = clonePolygon(poly)
		}
		return clone

	case orb.Collection:
		clone := make(orb.Collection, 0, len(geom))
		for _, c := range geom {
			cc := cloneGeometry(c)
			if cc == nil {
				return nil
			}
			clone = append(clone, cc)
		}
		return clone

	default:
		return nil
	}
}

func cloneLine(ls orb.LineString) orb.LineString {
	clone := make(orb.LineString, len(ls))
	copy(clone, ls)
	return clone
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	clone := make(orb.Polygon, len(p))
	for i, ring := range p {
		clone[i] = orb.Ring(cloneLine(orb.LineString(ring)))
	}
	return clone
}
