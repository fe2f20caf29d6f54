package api

import "github.com/gorilla/mux"

func registerBaseRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/status", s.handleStatus).Methods("GET", "OPTIONS")
}

func registerTrendRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/trends/realtime", s.handleTrendsRealtime).Methods("GET", "OPTIONS")
	r.HandleFunc("/trends/daily", s.handleTrendsDaily).Methods("GET", "OPTIONS")
	r.HandleFunc("/trends/top", s.handleTrendsTop).Methods("GET", "OPTIONS")
	r.HandleFunc("/trends/documents", s.handleTrendsDocuments).Methods("GET", "OPTIONS")
	r.HandleFunc("/trends/live", s.handleTrendsLive).Methods("GET", "OPTIONS")
}

func registerAdminRoutes(r *mux.Router, s *Server) {
	r.HandleFunc("/trends/admin/fetchDaily", s.handleAdminFetchDaily).Methods("POST", "OPTIONS")
}
