package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
	"parking-api/internal/spatial"
)

// 独立实现的 Haversine，用于核对期望值
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * 6371000 * math.Asin(math.Sqrt(a))
}

func laLots() []lot.Record {
	return []lot.Record{
		{ID: "lot-1", Name: "Pershing Square", Type: "structure", YearBuilt: 1952, Location: geo.Point{Lat: 34.0500, Lon: -118.2500}},
		{ID: "lot-2", Name: "Grand Central", Type: "surface", YearBuilt: 1978, Location: geo.Point{Lat: 34.0600, Lon: -118.2600}},
		{ID: "lot-3", Name: "Echo Park", Type: "surface", YearBuilt: 2003, Location: geo.Point{Lat: 34.1000, Lon: -118.3000}},
	}
}

func newEngine(t *testing.T, recs []lot.Record, opts ...Option) *Engine {
	t.Helper()
	idx, err := spatial.New(spatial.DefaultCellDeg)
	require.NoError(t, err)
	require.NoError(t, idx.Reload(recs))
	return New(idx, opts...)
}

func TestLAScenario(t *testing.T) {
	e := newEngine(t, laLots())

	v, err := e.FindNearest(34.0500, -118.2500)
	require.NoError(t, err)
	assert.Equal(t, "lot-1", v.ID)
	assert.Equal(t, "Pershing Square", v.Name)
	assert.Equal(t, "structure", v.Type)
	assert.Equal(t, 1952, v.YearBuilt)
	assert.Equal(t, 34.05, v.Latitude)
	assert.Equal(t, -118.25, v.Longitude)

	h, err := e.NearestHit(34.0500, -118.2500)
	require.NoError(t, err)
	assert.Equal(t, 0.0, h.DistanceMeters)

	within := 0
	for _, r := range laLots() {
		if haversineMeters(34.05, -118.25, r.Location.Lat, r.Location.Lon) <= 1000 {
			within++
		}
	}
	want := math.Floor(float64(within)/3*1e4+0.5) / 1e4
	score, err := e.Score(34.0500, -118.2500)
	require.NoError(t, err)
	assert.Equal(t, want, score)
	// 第二个停车场约 1.44km，超出 1km
	assert.Equal(t, 0.3333, score)
}

func TestEmptyIndex(t *testing.T) {
	e := newEngine(t, nil)
	s, err := e.Score(10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	_, err = e.FindNearest(10, 10)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeNotFound, Code(err))
	assert.Equal(t, "PARKING_LOT_NOT_FOUND", err.Error())
}

type countingSearcher struct{ calls int }

func (c *countingSearcher) Nearest(geo.Point) (spatial.Hit, bool) { c.calls++; return spatial.Hit{}, false }
func (c *countingSearcher) Density(geo.Point, float64) (int, int) { c.calls++; return 0, 0 }

func TestInvalidCoordinateDoesNotTouchIndex(t *testing.T) {
	s := &countingSearcher{}
	e := New(s)
	_, err := e.FindNearest(100.0, 0.0)
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, CodeInvalidCoordinate, Code(err))

	_, err = e.Score(100.0, 0.0)
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, CodeInvalidCoordinate, Code(err))
	assert.Zero(t, s.calls)
}

func TestScoreBoundsAndOrderInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var recs []lot.Record
	for i := 0; i < 300; i++ {
		recs = append(recs, lot.Record{
			ID:       fmt.Sprintf("lot-%03d", i),
			Location: geo.Point{Lat: 34 + rng.Float64()*0.2, Lon: -118.4 + rng.Float64()*0.2},
		})
	}
	shuffled := append([]lot.Record(nil), recs...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a := newEngine(t, recs)
	b := newEngine(t, shuffled)
	for i := 0; i < 50; i++ {
		lat, lon := 34+rng.Float64()*0.2, -118.4+rng.Float64()*0.2
		sa, err := a.Score(lat, lon)
		require.NoError(t, err)
		sb, err := b.Score(lat, lon)
		require.NoError(t, err)
		assert.Equal(t, sa, sb)
		assert.GreaterOrEqual(t, sa, 0.0)
		assert.LessOrEqual(t, sa, 1.0)
		assert.Equal(t, sa, Round4(sa))

		na, err := a.FindNearest(lat, lon)
		require.NoError(t, err)
		nb, err := b.FindNearest(lat, lon)
		require.NoError(t, err)
		assert.Equal(t, na, nb)
	}
}

func TestWithRadius(t *testing.T) {
	e := newEngine(t, laLots(), WithRadius(2000))
	assert.Equal(t, 2000.0, e.Radius())
	s, err := e.Score(34.05, -118.25)
	require.NoError(t, err)
	assert.Equal(t, 0.6667, s)

	assert.Equal(t, DefaultRadiusMeters, New(nil, WithRadius(-5)).Radius())
	assert.Equal(t, DefaultRadiusMeters, New(nil, WithRadius(math.Inf(1))).Radius())

	s, err = e.ScoreWithin(34.05, -118.25, 1e7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

func TestRound4(t *testing.T) {
	cases := map[float64]float64{
		0:           0,
		1:           1,
		1.0 / 3:     0.3333,
		2.0 / 3:     0.6667,
		0.12345:     0.1235,
		0.99996:     1,
		1.0 / 16:    0.0625,
		0.000049999: 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, Round4(in), "%v", in)
	}
}

func TestCodeUnknown(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "", Code(errors.New("boom")))
	assert.Equal(t, CodeNotFound, Code(fmt.Errorf("wrap: %w", ErrNotFound)))
}
