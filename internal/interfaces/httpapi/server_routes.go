package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/matches", handler.ListMatches)
	mux.HandleFunc("GET /v1/matches/{matchID}", handler.GetMatch)
	mux.HandleFunc("GET /v1/rankings", handler.GetLeaderboard)
	mux.HandleFunc("GET /v1/rankings/boards", handler.GetBoards)
	mux.HandleFunc("GET /v1/users/{userID}/score", handler.GetUserScore)
}

func registerUserRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("POST /v1/users", RequireUser(http.HandlerFunc(handler.RegisterUser)))
	mux.Handle("PUT /v1/matches/{matchID}/guess", RequireUser(http.HandlerFunc(handler.SubmitGuess)))
	mux.Handle("GET /v1/me/guesses", RequireUser(http.HandlerFunc(handler.ListMyGuesses)))
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("PUT /v1/admin/matches/{matchID}", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.UpsertMatch)))
	mux.Handle("PUT /v1/admin/matches/{matchID}/result", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RecordMatchResult)))
	mux.Handle("GET /v1/admin/matches/{matchID}/dispatches", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.ListMatchDispatches)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/aggregate-match", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunAggregateMatchJob)))
	mux.Handle("POST /v1/internal/jobs/reaggregate-match", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunReaggregateMatchJob)))
}
