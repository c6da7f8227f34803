package storage

import (
	"math"
	"testing"
)

// Known encodings of real-world coordinates at the committed grid
// resolution.
func TestCoordToScore(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		want     uint64
	}{
		{"Paris", 2.3488, 48.8534, 3663832752681684},
		{"Bangkok", 100.5252, 13.7220, 3962257306574459},
		{"New York", -74.0060, 40.7128, 1791873974549446},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoordToScore(tt.lon, tt.lat); got != tt.want {
				t.Errorf("CoordToScore(%v, %v) = %d, want %d", tt.lon, tt.lat, got, tt.want)
			}
		})
	}
}

func TestScoreToCoordRoundTrip(t *testing.T) {
	coords := []Coord{
		{Longitude: 2.3488, Latitude: 48.8534},
		{Longitude: 100.5252, Latitude: 13.7220},
		{Longitude: -74.0060, Latitude: 40.7128},
		{Longitude: 0, Latitude: 0},
		{Longitude: -179.9999, Latitude: -85.0},
	}

	// Decoding returns the grid cell center, so the round trip is exact
	// only to the cell size (~0.6m per axis).
	const epsilon = 1e-5

	for _, c := range coords {
		decoded := ScoreToCoord(CoordToScore(c.Longitude, c.Latitude))
		if math.Abs(decoded.Longitude-c.Longitude) > epsilon {
			t.Errorf("longitude round trip %v -> %v", c.Longitude, decoded.Longitude)
		}
		if math.Abs(decoded.Latitude-c.Latitude) > epsilon {
			t.Errorf("latitude round trip %v -> %v", c.Latitude, decoded.Latitude)
		}
	}
}

func TestValidateCoordinates(t *testing.T) {
	if !ValidateLongitude(180) || !ValidateLongitude(-180) || !ValidateLongitude(0) {
		t.Error("ValidateLongitude rejected an encodable value")
	}
	if ValidateLongitude(180.1) || ValidateLongitude(-181) {
		t.Error("ValidateLongitude accepted an out-of-range value")
	}
	if !ValidateLatitude(85.05112878) || !ValidateLatitude(-85.05112878) {
		t.Error("ValidateLatitude rejected a boundary value")
	}
	if ValidateLatitude(86) || ValidateLatitude(-90) {
		t.Error("ValidateLatitude accepted an out-of-range value")
	}
}

func TestGeoAddAndDist(t *testing.T) {
	s := newTestStorage(t)

	added, err := s.GeoAdd("sicily",
		GeoPoint{Longitude: 13.361389, Latitude: 38.115556, Member: "Palermo"},
		GeoPoint{Longitude: 15.087269, Latitude: 37.502669, Member: "Catania"},
	)
	if err != nil || added != 2 {
		t.Fatalf("GeoAdd() = %d, %v; want 2, nil", added, err)
	}

	dist, found, err := s.GeoDist("sicily", "Palermo", "Catania")
	if err != nil || !found {
		t.Fatalf("GeoDist() = %v, %v", found, err)
	}
	// Palermo to Catania is about 166.27 km
	if math.Abs(dist-166274) > 200 {
		t.Errorf("GeoDist() = %v m, want ~166274 m", dist)
	}

	if _, found, _ := s.GeoDist("sicily", "Palermo", "Rome"); found {
		t.Error("GeoDist() with missing member reported found")
	}
}

func TestGeoAddRejectsInvalid(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.GeoAdd("key", GeoPoint{Longitude: 200, Latitude: 0, Member: "x"}); err == nil {
		t.Error("GeoAdd() accepted longitude 200")
	}
	if _, err := s.GeoAdd("key", GeoPoint{Longitude: 0, Latitude: 90, Member: "x"}); err == nil {
		t.Error("GeoAdd() accepted latitude 90")
	}
}

func TestGeoPos(t *testing.T) {
	s := newTestStorage(t)

	s.GeoAdd("cities", GeoPoint{Longitude: 2.3488, Latitude: 48.8534, Member: "Paris"})

	coords, err := s.GeoPos("cities", "Paris", "Atlantis")
	if err != nil {
		t.Fatalf("GeoPos() error = %v", err)
	}
	if coords[0] == nil {
		t.Fatal("GeoPos(Paris) = nil")
	}
	if math.Abs(coords[0].Longitude-2.3488) > 1e-5 || math.Abs(coords[0].Latitude-48.8534) > 1e-5 {
		t.Errorf("GeoPos(Paris) = %v, want ~(2.3488, 48.8534)", coords[0])
	}
	if coords[1] != nil {
		t.Errorf("GeoPos(Atlantis) = %v, want nil", coords[1])
	}
}

func TestGeoSearchRadius(t *testing.T) {
	s := newTestStorage(t)

	s.GeoAdd("sicily",
		GeoPoint{Longitude: 13.361389, Latitude: 38.115556, Member: "Palermo"},
		GeoPoint{Longitude: 15.087269, Latitude: 37.502669, Member: "Catania"},
		GeoPoint{Longitude: 12.4964, Latitude: 41.9028, Member: "Rome"},
	)

	// 200km around a point between Palermo and Catania
	results, err := s.GeoSearch("sicily", GeoSearchQuery{
		Longitude: 15, Latitude: 37,
		ByRadius: true, Radius: 200000,
	})
	if err != nil {
		t.Fatalf("GeoSearch() error = %v", err)
	}

	found := make(map[string]float64)
	for _, r := range results {
		found[r.Member] = r.Dist
	}
	if len(found) != 2 {
		t.Fatalf("GeoSearch() matched %v, want Palermo and Catania", found)
	}
	if _, ok := found["Rome"]; ok {
		t.Error("GeoSearch() matched Rome outside the radius")
	}
	if found["Catania"] >= found["Palermo"] {
		t.Error("Catania should be closer to the center than Palermo")
	}
}

func TestGeoSearchBox(t *testing.T) {
	s := newTestStorage(t)

	s.GeoAdd("sicily",
		GeoPoint{Longitude: 13.361389, Latitude: 38.115556, Member: "Palermo"},
		GeoPoint{Longitude: 15.087269, Latitude: 37.502669, Member: "Catania"},
		GeoPoint{Longitude: 12.4964, Latitude: 41.9028, Member: "Rome"},
	)

	results, err := s.GeoSearch("sicily", GeoSearchQuery{
		Longitude: 15, Latitude: 37,
		Width: 400000, Height: 400000,
	})
	if err != nil {
		t.Fatalf("GeoSearch() error = %v", err)
	}

	members := make(map[string]bool)
	for _, r := range results {
		members[r.Member] = true
	}
	if !members["Palermo"] || !members["Catania"] || members["Rome"] {
		t.Errorf("GeoSearch() box matched %v, want Palermo and Catania only", members)
	}
}

func TestGeoIndexIsAZSet(t *testing.T) {
	s := newTestStorage(t)

	s.GeoAdd("cities", GeoPoint{Longitude: 2.3488, Latitude: 48.8534, Member: "Paris"})

	kind, exists := s.Type("cities")
	if !exists || kind != ValueTypeZSet {
		t.Errorf("Type() on geo index = %v, %v; want zset", kind, exists)
	}

	score, found, err := s.ZScore("cities", "Paris")
	if err != nil || !found {
		t.Fatalf("ZScore() = %v, %v", found, err)
	}
	if uint64(score) != 3663832752681684 {
		t.Errorf("geo score = %v, want 3663832752681684", uint64(score))
	}
}
