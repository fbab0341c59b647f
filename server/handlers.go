package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/forecast"
	"github.com/sartorproj/fluxcast/history"
	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/service"
	"github.com/sartorproj/fluxcast/timeseries"
)

var errBadRequest = errors.New("bad request")

// number encodes NaN as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// WeekJSON is one week of a ReportJSON.
type WeekJSON struct {
	Date        string `json:"date"`
	Year        int    `json:"year"`
	Week        int    `json:"week"`
	Forecast    number `json:"forecast"`
	Lower       number `json:"lower"`
	Upper       number `json:"upper"`
	LastYear    number `json:"last_year"`
	TwoYearsAgo number `json:"two_years_ago"`
	Source      string `json:"source"`
}

// ReportJSON is the wire form of a service.Report. Unknown values encode
// as null.
type ReportJSON struct {
	Outlet     string     `json:"outlet"`
	RunID      string     `json:"run_id"`
	Order      string     `json:"order"`
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Weeks      []WeekJSON `json:"weeks"`
	Total      number     `json:"total"`
	TotalLower number     `json:"total_lower"`
	TotalUpper number     `json:"total_upper"`
	Caveats    []string   `json:"caveats"`
}

// NewReportJSON converts rep.
func NewReportJSON(rep *service.Report) ReportJSON {
	out := ReportJSON{
		Outlet:     rep.Outlet,
		RunID:      rep.RunID,
		Order:      rep.Order,
		Start:      timeseries.FormatDate(rep.Start),
		End:        timeseries.FormatDate(rep.End),
		Weeks:      make([]WeekJSON, len(rep.Weeks)),
		Total:      number(rep.Total),
		TotalLower: number(rep.TotalLower),
		TotalUpper: number(rep.TotalUpper),
		Caveats:    rep.Caveats,
	}
	if out.Caveats == nil {
		out.Caveats = []string{}
	}
	for i, w := range rep.Weeks {
		out.Weeks[i] = WeekJSON{
			Date:        timeseries.FormatDate(w.Date),
			Year:        w.Year,
			Week:        w.Week,
			Forecast:    number(w.Forecast),
			Lower:       number(w.Lower),
			Upper:       number(w.Upper),
			LastYear:    number(w.LastYear),
			TwoYearsAgo: number(w.TwoYearsAgo),
			Source:      string(w.Source),
		}
	}
	return out
}

type trainJSON struct {
	Outlet   string   `json:"outlet"`
	RunID    string   `json:"run_id"`
	Order    string   `json:"order"`
	AIC      number   `json:"aic"`
	Quality  string   `json:"quality"`
	Trials   int      `json:"trials"`
	Weeks    int      `json:"weeks"`
	Duration string   `json:"duration"`
	Caveats  []string `json:"caveats"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// status maps an error to its HTTP status.
func status(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, service.ErrRange),
		errors.Is(err, forecast.ErrSchema):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrUnknownTarget),
		errors.Is(err, bundle.ErrNotFound),
		errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrSectorNotEmpty):
		return http.StatusConflict
	case errors.Is(err, forecast.ErrFeatureMismatch),
		errors.Is(err, exogenous.ErrDataIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	ev := s.Logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.Logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request failed")
	writeJSON(w, code, errorJSON{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// budget reads the optional ?budget= duration.
func budget(r *http.Request) (time.Duration, error) {
	v := r.URL.Query().Get("budget")
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: budget %q", errBadRequest, v)
	}
	return d, nil
}

func (s *Server) trainOutlet(w http.ResponseWriter, r *http.Request) {
	b, err := budget(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outlet := mux.Vars(r)["outlet"]
	rep, err := s.Backend.TrainOutlet(r.Context(), outlet, b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res := rep.Result
	out := trainJSON{
		Outlet:   outlet,
		RunID:    res.RunID,
		Order:    res.Order.String(),
		AIC:      number(res.AIC),
		Quality:  res.Quality,
		Trials:   res.Trials,
		Weeks:    rep.Weeks,
		Duration: res.Duration.Round(time.Millisecond).String(),
		Caveats:  rep.Caveats,
	}
	if out.Caveats == nil {
		out.Caveats = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) trainAll(w http.ResponseWriter, r *http.Request) {
	b, err := budget(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum, err := s.Backend.TrainAll(r.Context(), b)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := timeseries.ParseDate(q.Get("start"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: start: %v", errBadRequest, err))
		return
	}
	end, err := timeseries.ParseDate(q.Get("end"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: end: %v", errBadRequest, err))
		return
	}
	rep, err := s.Backend.Forecast(r.Context(), mux.Vars(r)["outlet"], start, end)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewReportJSON(rep))
}

func (s *Server) catalog(w http.ResponseWriter, r *http.Request) bool {
	if s.Catalog == nil {
		s.fail(w, r, fmt.Errorf("%w: no outlet registry configured", registry.ErrNotFound))
		return false
	}
	return true
}

func sectorID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: sector id: %v", errBadRequest, err)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) listSectors(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	sectors, err := s.Catalog.Sectors(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sectors == nil {
		sectors = []registry.Sector{}
	}
	writeJSON(w, http.StatusOK, sectors)
}

func (s *Server) addSector(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == "" {
		s.fail(w, r, fmt.Errorf("%w: missing name", errBadRequest))
		return
	}
	sector, err := s.Catalog.AddSector(r.Context(), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sector)
}

func (s *Server) deleteSector(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	id, err := sectorID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Catalog.DeleteSector(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSectorOutlets(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	id, err := sectorID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outlets, err := s.Catalog.OutletsInSector(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if outlets == nil {
		outlets = []registry.Outlet{}
	}
	writeJSON(w, http.StatusOK, outlets)
}

func (s *Server) listOutlets(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	outlets, err := s.Catalog.Outlets(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if outlets == nil {
		outlets = []registry.Outlet{}
	}
	writeJSON(w, http.StatusOK, outlets)
}

func (s *Server) getOutlet(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	outlet, err := s.Catalog.Outlet(r.Context(), mux.Vars(r)["outlet"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outlet)
}

func (s *Server) addOutlet(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	var req struct {
		Name     string `json:"name"`
		SectorID int64  `json:"sector_id"`
	}
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == "" {
		s.fail(w, r, fmt.Errorf("%w: missing name", errBadRequest))
		return
	}
	outlet, err := s.Catalog.AddOutlet(r.Context(), req.Name, req.SectorID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, outlet)
}

func (s *Server) deleteOutlet(w http.ResponseWriter, r *http.Request) {
	if !s.catalog(w, r) {
		return
	}
	if err := s.Catalog.DeleteOutlet(r.Context(), mux.Vars(r)["outlet"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
