package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"parking-api/internal/geo"
)

const maxBodyBytes = 64 << 10

// errBadRequest 请求格式错误（JSON 不合法、数值无法解析）
var errBadRequest = errors.New("bad request")

// readCoordinates：优先查询参数 latitude/longitude，其次 JSON 请求体
// 返回：格式错误包装 errBadRequest；缺失字段返回 geo.ErrInvalidCoordinate
func readCoordinates(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	if q.Has("latitude") || q.Has("longitude") {
		if lat, err = queryFloat(q.Get("latitude"), "latitude"); err != nil {
			return 0, 0, err
		}
		if lon, err = queryFloat(q.Get("longitude"), "longitude"); err != nil {
			return 0, 0, err
		}
		return lat, lon, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return 0, 0, fmt.Errorf("%w: body too large", errBadRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return 0, 0, fmt.Errorf("%w: latitude and longitude are required", geo.ErrInvalidCoordinate)
	}
	var req coordinateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.Latitude == nil || req.Longitude == nil {
		return 0, 0, fmt.Errorf("%w: latitude and longitude are required", geo.ErrInvalidCoordinate)
	}
	return *req.Latitude, *req.Longitude, nil
}

func queryFloat(s, name string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", geo.ErrInvalidCoordinate, name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}

// readRadius 可选的 radius 查询参数（米）；缺省返回 0
func readRadius(r *http.Request) (float64, error) {
	s := strings.TrimSpace(r.URL.Query().Get("radius"))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v <= 0 || v > maxRadiusMeters {
		return 0, fmt.Errorf("%w: radius must be in (0, %g]", errBadRequest, maxRadiusMeters)
	}
	return v, nil
}
