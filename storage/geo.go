package storage

import (
	"fmt"
	"math"
)

// Geo indexes are sorted sets whose score is a 52-bit interleaved
// geohash of (longitude, latitude). Storage and ordering are delegated
// to the sorted set operations; this file adds the pure encode, decode
// and distance functions layered on top.

const (
	// MinLatitude is the lowest encodable latitude
	MinLatitude = -85.05112878
	// MaxLatitude is the highest encodable latitude
	MaxLatitude = 85.05112878
	// MinLongitude is the lowest encodable longitude
	MinLongitude = -180.0
	// MaxLongitude is the highest encodable longitude
	MaxLongitude = 180.0

	latitudeRange  = MaxLatitude - MinLatitude
	longitudeRange = MaxLongitude - MinLongitude

	// geoScale is the grid resolution per axis (2^26)
	geoScale = 67108864.0

	// earthRadiusMeters matches the reference implementation's sphere
	earthRadiusMeters = 6372797.560856
)

// Coord is a decoded (longitude, latitude) pair
type Coord struct {
	Longitude float64
	Latitude  float64
}

// GeoPoint is a member with its coordinates, as supplied to GeoAdd
type GeoPoint struct {
	Longitude float64
	Latitude  float64
	Member    string
}

// GeoSearchQuery selects members around a center point, either within a
// radius or within an axis-aligned box. Dimensions are in meters.
type GeoSearchQuery struct {
	Longitude float64
	Latitude  float64

	// Radius search when ByRadius is true, box search otherwise
	ByRadius bool
	Radius   float64
	Width    float64
	Height   float64
}

// GeoResult is one member matched by GeoSearch
type GeoResult struct {
	Member    string
	Dist      float64 // meters from the query center
	Longitude float64
	Latitude  float64
}

// ValidateLongitude reports whether lon is encodable
func ValidateLongitude(lon float64) bool {
	return MinLongitude <= lon && lon <= MaxLongitude
}

// ValidateLatitude reports whether lat is encodable
func ValidateLatitude(lat float64) bool {
	return MinLatitude <= lat && lat <= MaxLatitude
}

// CoordToScore encodes (longitude, latitude) to a 52-bit score by
// normalizing each axis to a 26-bit grid cell and interleaving the
// bits, longitude on the odd positions.
func CoordToScore(lon, lat float64) uint64 {
	normalizedLon := uint32(geoScale * (lon - MinLongitude) / longitudeRange)
	normalizedLat := uint32(geoScale * (lat - MinLatitude) / latitudeRange)

	xLon := spreadUint32(normalizedLon)
	yLat := spreadUint32(normalizedLat)

	return yLat | (xLon << 1)
}

// ScoreToCoord decodes a score back to the center of its grid cell.
// The round trip is lossless at the committed 26-bit precision, not at
// full double precision.
func ScoreToCoord(score uint64) Coord {
	gridLon := float64(compactUint64(score >> 1))
	gridLat := float64(compactUint64(score))

	gridLonMin := MinLongitude + longitudeRange*(gridLon/geoScale)
	gridLonMax := MinLongitude + longitudeRange*((gridLon+1)/geoScale)
	gridLatMin := MinLatitude + latitudeRange*(gridLat/geoScale)
	gridLatMax := MinLatitude + latitudeRange*((gridLat+1)/geoScale)

	return Coord{
		Longitude: (gridLonMin + gridLonMax) / 2,
		Latitude:  (gridLatMin + gridLatMax) / 2,
	}
}

// spreadUint32 spreads the 32 bits of v across 64 bits, inserting a
// zero bit between each pair of adjacent bits
func spreadUint32(v uint32) uint64 {
	x := uint64(v)
	x = (x | (x << 16)) & 0x0000FFFF0000FFFF
	x = (x | (x << 8)) & 0x00FF00FF00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F0F0F0F0F
	x = (x | (x << 2)) & 0x3333333333333333
	x = (x | (x << 1)) & 0x5555555555555555
	return x
}

// compactUint64 inverts spreadUint32, keeping only the even-position bits
func compactUint64(v uint64) uint32 {
	v &= 0x5555555555555555
	v = (v | (v >> 1)) & 0x3333333333333333
	v = (v | (v >> 2)) & 0x0F0F0F0F0F0F0F0F
	v = (v | (v >> 4)) & 0x00FF00FF00FF00FF
	v = (v | (v >> 8)) & 0x0000FFFF0000FFFF
	v = (v | (v >> 16)) & 0x00000000FFFFFFFF
	return uint32(v)
}

// HaversineDistance returns the great-circle distance in meters between
// two coordinates on the reference sphere
func HaversineDistance(a, b Coord) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// GeoAdd encodes each point's coordinates to a score and stores the
// members in the sorted set at key. Returns the number of members
// newly added.
func (s *MemoryStorage) GeoAdd(key string, points ...GeoPoint) (int64, error) {
	members := make([]ZSetMember, len(points))
	for i, p := range points {
		if !ValidateLongitude(p.Longitude) || !ValidateLatitude(p.Latitude) {
			return 0, fmt.Errorf("invalid longitude,latitude pair %.6f,%.6f", p.Longitude, p.Latitude)
		}
		members[i] = ZSetMember{
			Member: p.Member,
			Score:  float64(CoordToScore(p.Longitude, p.Latitude)),
		}
	}

	return s.ZAdd(key, members...)
}

// GeoPos returns the decoded coordinates of each member, nil for
// members not present
func (s *MemoryStorage) GeoPos(key string, members ...string) ([]*Coord, error) {
	coords := make([]*Coord, len(members))
	for i, member := range members {
		score, exists, err := s.ZScore(key, member)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		c := ScoreToCoord(uint64(score))
		coords[i] = &c
	}
	return coords, nil
}

// GeoDist returns the distance in meters between two members of the
// geo index. The second return is false when either member is missing.
func (s *MemoryStorage) GeoDist(key, member1, member2 string) (float64, bool, error) {
	coords, err := s.GeoPos(key, member1, member2)
	if err != nil {
		return 0, false, err
	}
	if coords[0] == nil || coords[1] == nil {
		return 0, false, nil
	}

	return HaversineDistance(*coords[0], *coords[1]), true, nil
}

// GeoSearch returns the members of the geo index matching the query,
// with their distance from the query center. Results are unordered;
// callers sort by distance when requested.
func (s *MemoryStorage) GeoSearch(key string, query GeoSearchQuery) ([]GeoResult, error) {
	members, err := s.ZRange(key, 0, -1)
	if err != nil {
		return nil, err
	}

	center := Coord{Longitude: query.Longitude, Latitude: query.Latitude}

	results := make([]GeoResult, 0)
	for _, m := range members {
		coord := ScoreToCoord(uint64(m.Score))
		dist := HaversineDistance(center, coord)

		if query.ByRadius {
			if dist > query.Radius {
				continue
			}
		} else {
			// Per-axis distances against half the box dimensions
			dLon := HaversineDistance(center, Coord{Longitude: coord.Longitude, Latitude: center.Latitude})
			dLat := HaversineDistance(center, Coord{Longitude: center.Longitude, Latitude: coord.Latitude})
			if dLon > query.Width/2 || dLat > query.Height/2 {
				continue
			}
		}

		results = append(results, GeoResult{
			Member:    m.Member,
			Dist:      dist,
			Longitude: coord.Longitude,
			Latitude:  coord.Latitude,
		})
	}

	return results, nil
}
