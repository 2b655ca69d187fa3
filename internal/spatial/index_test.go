package spatial

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
)

func mkLot(id string, lat, lon float64) lot.Record {
	return lot.Record{ID: id, Name: "lot " + id, Type: "surface", YearBuilt: 1990, Location: geo.Point{Lat: lat, Lon: lon}}
}

func newIndex(t *testing.T, cell float64) *Index {
	t.Helper()
	x, err := New(cell)
	require.NoError(t, err)
	return x
}

func bruteNearest(recs []lot.Record, p geo.Point) (lot.Record, float64, bool) {
	var best lot.Record
	bestD := math.Inf(1)
	found := false
	for _, r := range recs {
		d := p.DistanceTo(r.Location)
		if !found || d < bestD || (d == bestD && r.ID < best.ID) {
			best, bestD, found = r, d, true
		}
	}
	return best, bestD, found
}

func bruteCount(recs []lot.Record, p geo.Point, radius float64) int {
	n := 0
	for _, r := range recs {
		if p.DistanceTo(r.Location) <= radius {
			n++
		}
	}
	return n
}

type dataset struct {
	name string
	gen  func(rng *rand.Rand) geo.Point
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

var datasets = []dataset{
	{"la_cluster", func(rng *rand.Rand) geo.Point {
		return geo.Point{Lat: 34.05 + rng.NormFloat64()*0.05, Lon: -118.25 + rng.NormFloat64()*0.05}
	}},
	{"global", func(rng *rand.Rand) geo.Point {
		return geo.Point{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
	}},
	{"antimeridian", func(rng *rand.Rand) geo.Point {
		lon := 179.9 + rng.Float64()*0.2
		if lon > 180 {
			lon -= 360
		}
		return geo.Point{Lat: -16 + rng.Float64()*0.2, Lon: lon}
	}},
	{"polar", func(rng *rand.Rand) geo.Point {
		return geo.Point{Lat: clamp(89.8+rng.Float64()*0.3, -90, 90), Lon: rng.Float64()*360 - 180}
	}},
	{"sparse_grid_points", func(rng *rand.Rand) geo.Point {
		// 落在格线上的坐标
		return geo.Point{Lat: float64(rng.Intn(20))*0.01 + 10, Lon: float64(rng.Intn(20))*0.01 + 20}
	}},
}

func TestNearestAndCountMatchBruteForce(t *testing.T) {
	for _, cell := range []float64{0.01, 0.25, 0.33, 0.7, 1.1, 7.5} {
		for _, ds := range datasets {
			t.Run(fmt.Sprintf("%s/cell=%v", ds.name, cell), func(t *testing.T) {
				rng := rand.New(rand.NewSource(42))
				x := newIndex(t, cell)
				var recs []lot.Record
				for i := 0; i < 400; i++ {
					p := ds.gen(rng)
					r := mkLot(fmt.Sprintf("lot-%04d", rng.Intn(10000)), p.Lat, p.Lon)
					recs = append(recs, r)
					require.NoError(t, x.Insert(r))
				}
				require.Equal(t, len(recs), x.Size())
				for q := 0; q < 150; q++ {
					var p geo.Point
					if q%3 == 0 {
						p = recs[rng.Intn(len(recs))].Location
					} else {
						p = ds.gen(rng)
					}
					want, wantD, ok := bruteNearest(recs, p)
					require.True(t, ok)
					got, found := x.Nearest(p)
					require.True(t, found)
					assert.Equal(t, want.ID, got.Record.ID, "query %v", p)
					assert.Equal(t, wantD, got.DistanceMeters, "query %v", p)

					for _, radius := range []float64{0, 500, 1000, 5000, 50000, rng.Float64() * 2e5} {
						assert.Equal(t, bruteCount(recs, p, radius), x.CountWithin(p, radius), "query %v r=%v", p, radius)
					}
					// 半径恰为某条记录的距离：边界包含
					edge := p.DistanceTo(recs[rng.Intn(len(recs))].Location)
					assert.Equal(t, bruteCount(recs, p, edge), x.CountWithin(p, edge))
				}
			})
		}
	}
}

func TestCountWithinWholeGlobe(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		require.NoError(t, x.Insert(mkLot(fmt.Sprint(i), rng.Float64()*180-90, rng.Float64()*360-180)))
	}
	p := geo.Point{Lat: 12, Lon: 34}
	assert.Equal(t, 100, x.CountWithin(p, math.Pi*geo.EarthRadiusMeters))
	assert.Equal(t, 100, x.CountWithin(p, 1e9))
	assert.Equal(t, 0, x.CountWithin(p, -1))
	assert.Equal(t, 0, x.CountWithin(p, math.NaN()))
}

func TestNearestTieBreakByID(t *testing.T) {
	origin := geo.Point{Lat: 0, Lon: 0}
	pts := []lot.Record{
		mkLot("d", 0.01, 0),
		mkLot("b", -0.01, 0),
		mkLot("c", 0, 0.01),
		mkLot("a", 0, -0.01),
	}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}}
	for _, ord := range orders {
		x := newIndex(t, DefaultCellDeg)
		for _, i := range ord {
			require.NoError(t, x.Insert(pts[i]))
		}
		for rep := 0; rep < 3; rep++ {
			h, ok := x.Nearest(origin)
			require.True(t, ok)
			assert.Equal(t, "a", h.Record.ID, "order %v", ord)
		}
	}
}

func TestDuplicateCoordinatesBothRetrievable(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	require.NoError(t, x.Insert(mkLot("z", 34.05, -118.25)))
	require.NoError(t, x.Insert(mkLot("y", 34.05, -118.25)))
	require.NoError(t, x.Insert(mkLot("y", 34.05, -118.25)))
	assert.Equal(t, 3, x.Size())
	assert.Equal(t, 3, x.CountWithin(geo.Point{Lat: 34.05, Lon: -118.25}, 0))
	h, ok := x.Nearest(geo.Point{Lat: 34.05, Lon: -118.25})
	require.True(t, ok)
	assert.Equal(t, "y", h.Record.ID)
	assert.Equal(t, 0.0, h.DistanceMeters)
}

func TestInsertRejectsInvalidCoordinate(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	err := x.Insert(mkLot("bad", 100, 0))
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	err = x.Insert(mkLot("bad", 0, math.NaN()))
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, 0, x.Size())
}

func TestEmptyIndex(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	_, ok := x.Nearest(geo.Point{Lat: 1, Lon: 2})
	assert.False(t, ok)
	assert.Equal(t, 0, x.CountWithin(geo.Point{Lat: 1, Lon: 2}, 1000))
	within, total := x.Density(geo.Point{Lat: 1, Lon: 2}, 1000)
	assert.Zero(t, within)
	assert.Zero(t, total)
}

func TestClearIdempotent(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	require.NoError(t, x.Insert(mkLot("a", 1, 1)))
	v0 := x.Version()
	x.Clear()
	assert.Equal(t, 0, x.Size())
	x.Clear()
	assert.Equal(t, 0, x.Size())
	assert.Greater(t, x.Version(), v0)
	_, ok := x.Nearest(geo.Point{Lat: 1, Lon: 1})
	assert.False(t, ok)
	// 清空后仍可写入
	require.NoError(t, x.Insert(mkLot("b", 2, 2)))
	assert.Equal(t, 1, x.Size())
}

func TestReloadRejectsInvalidAndKeepsPrevious(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	require.NoError(t, x.Reload([]lot.Record{mkLot("a", 1, 1), mkLot("b", 2, 2)}))
	fp := x.Fingerprint()
	err := x.Reload([]lot.Record{mkLot("c", 3, 3), mkLot("bad", 91, 0)})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
	assert.Equal(t, 2, x.Size())
	assert.Equal(t, fp, x.Fingerprint())
}

func TestFingerprintOrderIndependent(t *testing.T) {
	recs := []lot.Record{mkLot("a", 1, 1), mkLot("b", 2, 2), mkLot("c", 3, 3)}
	x1 := newIndex(t, DefaultCellDeg)
	x2 := newIndex(t, 0.5)
	require.NoError(t, x1.Reload(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		require.NoError(t, x2.Insert(recs[i]))
	}
	assert.Equal(t, x1.Fingerprint(), x2.Fingerprint())
	x2.Clear()
	assert.NotEqual(t, x1.Fingerprint(), x2.Fingerprint())
}

func TestCellSizeSnapsToDivisorOf180(t *testing.T) {
	for _, c := range []float64{0.01, 0.25, 0.33, 0.7, 1.1, 7.5, 50, 90} {
		x := newIndex(t, c)
		n := 180 / x.CellDeg()
		assert.InDelta(t, math.Round(n), n, 1e-9, "%v", c)
		assert.InDelta(t, c, x.CellDeg(), c/2, "%v", c)
		assert.Equal(t, 2*x.g.rows, x.g.cols)
	}
	assert.Equal(t, 0.01, SnapCellDeg(0.01))
	assert.Equal(t, 0.25, SnapCellDeg(0.25))
	assert.Equal(t, 90.0, SnapCellDeg(90))
}

func TestNearestAcrossAntimeridianWithUnevenCell(t *testing.T) {
	for _, cell := range []float64{0.7, 0.33, 1.1} {
		x := newIndex(t, cell)
		a := mkLot("a", 0, -179.22)
		b := mkLot("b", 0.84, 179.95)
		require.NoError(t, x.Reload([]lot.Record{b, a}))
		p := geo.Point{Lat: 0, Lon: 179.95}
		want, wantD, _ := bruteNearest([]lot.Record{a, b}, p)
		require.Equal(t, "a", want.ID)
		h, ok := x.Nearest(p)
		require.True(t, ok)
		assert.Equal(t, "a", h.Record.ID, "cell %v", cell)
		assert.Equal(t, wantD, h.DistanceMeters)
	}
}

func TestNewRejectsBadCell(t *testing.T) {
	for _, c := range []float64{0, -1, math.NaN(), math.Inf(1), 91} {
		_, err := New(c)
		assert.Error(t, err, "%v", c)
	}
}

func TestReloadAtomicUnderConcurrentReaders(t *testing.T) {
	x := newIndex(t, DefaultCellDeg)
	rng := rand.New(rand.NewSource(3))
	gen := func(n int, prefix string) []lot.Record {
		out := make([]lot.Record, n)
		for i := range out {
			out[i] = mkLot(fmt.Sprintf("%s-%03d", prefix, i), 34+rng.Float64()*0.1, -118.3+rng.Float64()*0.1)
		}
		return out
	}
	oldSet, newSet := gen(50, "old"), gen(80, "new")
	require.NoError(t, x.Reload(oldSet))

	p := geo.Point{Lat: 34.05, Lon: -118.25}
	oldWithin := bruteCount(oldSet, p, 1000)
	newWithin := bruteCount(newSet, p, 1000)

	var stop atomic.Bool
	var bad atomic.Int64
	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				within, total := x.Density(p, 1000)
				switch total {
				case 50:
					if within != oldWithin {
						bad.Add(1)
					}
				case 80:
					if within != newWithin {
						bad.Add(1)
					}
				default:
					bad.Add(1)
				}
				if n := x.Size(); n != 50 && n != 80 {
					bad.Add(1)
				}
				if _, ok := x.Nearest(p); !ok {
					bad.Add(1)
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			require.NoError(t, x.Reload(newSet))
		} else {
			require.NoError(t, x.Reload(oldSet))
		}
	}
	stop.Store(true)
	wg.Wait()
	assert.Zero(t, bad.Load())
}
