// 包 api：停车场查询 HTTP 接口（gorilla/mux），主入口只负责装配
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"parking-api/internal/engine"
	"parking-api/internal/logger"
	"parking-api/internal/metrics"
)

// BuildRoutes 注册全部路由；base 为 API 前缀（可为空）
func BuildRoutes(s *Service, base string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(base+"/parking-lot/nearest", s.handleNearest).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(base+"/parking-lot/calculate-location-score", s.handleScore).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(base+"/admin/reload", s.handleReload).Methods(http.MethodPost)
	r.HandleFunc(base+"/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Service) handleNearest(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := readCoordinates(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.Nearest(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, b)
}

func (s *Service) handleScore(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := readCoordinates(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var radius float64
	if s.opts.RadiusTunable {
		if radius, err = readRadius(r); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	b, err := s.Score(r.Context(), lat, lon, radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, b)
}

func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	t := r.Header.Get("x-admin-token")
	if s.opts.AdminToken == "" || subtle.ConstantTimeCompare([]byte(t), []byte(s.opts.AdminToken)) != 1 {
		writeJSON(w, http.StatusForbidden, errorBody{Error: codeForbidden, Message: "invalid admin token"})
		return
	}
	n, err := s.Reload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: codeLoadFailure, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reloadBody{Lots: n})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health())
}

// writeError：错误到状态码与标签的映射
// 空索引沿用 400（可配置为 404），标签 NOT_FOUND 与坐标错误区分
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch code := engine.Code(err); {
	case code == engine.CodeInvalidCoordinate:
		metrics.InvalidCoordinateTotal.Inc()
		writeJSON(w, http.StatusBadRequest, errorBody{Error: code, Message: err.Error()})
	case code == engine.CodeNotFound:
		metrics.NotFoundTotal.Inc()
		writeJSON(w, s.opts.NotFoundStatus, errorBody{Error: code, Message: err.Error()})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: codeInvalidRequest, Message: err.Error()})
	default:
		logger.L().Error("request_error", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: codeInternal, Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		status, b = http.StatusInternalServerError, []byte(`{"error":"INTERNAL","message":"encode"}`)
	}
	writeRaw(w, status, b)
}

func writeRaw(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
