package http

import (
	"net/http"

	"costmanager/internal/log"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q, ok := s.reportQuery(w, r)
	if !ok {
		return
	}

	rep, err := s.svc.GetReport(r.Context(), q.Year, q.Month, q.Currency)
	if err != nil {
		s.writeQueryError(w, r, err, log.OpReport, q)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q, ok := s.reportQuery(w, r)
	if !ok {
		return
	}

	totals, err := s.svc.CategoryTotals(r.Context(), q.Year, q.Month, q.Currency)
	if err != nil {
		s.writeQueryError(w, r, err, log.OpCategories, q)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleYearlyTotals(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	q, ok := s.reportQuery(w, r)
	if !ok {
		return
	}
	q.Month = 0

	totals, err := s.svc.YearMonthlyTotals(r.Context(), q.Year, q.Currency)
	if err != nil {
		s.writeQueryError(w, r, err, log.OpYearly, q)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) reportQuery(w http.ResponseWriter, r *http.Request) (reportQuery, bool) {
	q, err := parseReportQuery(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return reportQuery{}, false
	}
	return q, true
}

func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error, op string, q reportQuery) {
	status := statusFor(err)
	if status >= 500 {
		log.LogError(r.Context(), "Report query failed", err, op,
			log.NewFields().WithReport(q.Year, q.Month, q.Currency))
	}
	writeError(w, status, publicMessage(status, err))
}
