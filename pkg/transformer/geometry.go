package transformer

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// ErrUnsupportedGeometry is returned for geometry types that cannot be transformed.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// geometry dispatches on the geometry type. Multi geometries and collections
// are transformed per component; a Bound is transformed as its polygon.
func (d *direction) geometry(g orb.Geometry, o Options) (orb.Geometry, error) {
	switch g := g.(type) {
	case orb.Point:
		return d.point(g), nil
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(g))
		for i, p := range g {
			out[i] = d.point(p)
		}
		return out, nil
	case orb.LineString:
		return d.lineString(g, o), nil
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = d.lineString(ls, o)
		}
		return out, nil
	case orb.Ring:
		return d.ring(g, o), nil
	case orb.Polygon:
		return d.polygon(g, o), nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			out[i] = d.polygon(p, o)
		}
		return out, nil
	case orb.Bound:
		return d.polygon(g.ToPolygon(), o), nil
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, member := range g {
			transformed, err := d.geometry(member, o)
			if err != nil {
				return nil, errors.Wrapf(err, "collection member %d", i)
			}
			out[i] = transformed
		}
		return out, nil
	case nil:
		return nil, errors.Wrap(ErrUnsupportedGeometry, "nil geometry")
	}
	return nil, errors.Wrapf(ErrUnsupportedGeometry, "%T", g)
}
