// 包 geo：经纬度坐标值类型与球面距离计算，供空间索引与查询引擎共用
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters 平均地球半径（米）
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate 坐标越界或非有限数值；对外标签 INVALID_COORDINATE
var ErrInvalidCoordinate = errors.New("INVALID_COORDINATE")

// Point：WGS84 经纬度，值类型，相等即坐标相等
type Point struct {
	Lat float64
	Lon float64
}

// NewPoint：构造并校验坐标
// 约束：纬度 [-90,90]、经度 [-180,180]，NaN/Inf 视为非法；不做截断或回绕
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate：校验已有坐标（用于外部构造的字面量或数据库读回的记录）
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

func (p Point) String() string { return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lon) }

// DistanceTo：Haversine 球面距离（米）
// 约束：对称；两点坐标相同时为 0
func (p Point) DistanceTo(o Point) float64 {
	return Haversine(p.Lat, p.Lon, o.Lat, o.Lon)
}

// Haversine 返回两点间大圆距离（米）
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := DegToRad(lat2 - lat1)
	dLon := DegToRad(lon2 - lon1)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	a := sLat*sLat + math.Cos(DegToRad(lat1))*math.Cos(DegToRad(lat2))*sLon*sLon
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func DegToRad(d float64) float64 { return d * math.Pi / 180 }

func RadToDeg(r float64) float64 { return r * 180 / math.Pi }
