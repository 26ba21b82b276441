package registry

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	KindRegexp      = `datasets|checkpoints|samples`
	NameRegexp      = `[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}`
	IDRegexp        = `[a-fA-F0-9]{32,}`
	BenchmarkRegexp = `[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}`
)

func (s *Registry) route() http.Handler {
	mux := mux.NewRouter()
	mux = mux.StrictSlash(true)
	// healthy
	mux.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// repository index
	mux.Methods("GET").Path("/").HandlerFunc(s.GetRepositoryIndex)
	// items
	items := mux.PathPrefix("/items/{kind:" + KindRegexp + "}").Subrouter()
	items.Methods("HEAD").Path("/{name:" + NameRegexp + "}").HandlerFunc(s.HeadItem)
	items.Methods("GET").Path("/{name:" + NameRegexp + "}").HandlerFunc(s.GetItem)
	items.Methods("PUT").Path("/{name:" + NameRegexp + "}").HandlerFunc(s.PutItem)
	items.Methods("DELETE").Path("/{name:" + NameRegexp + "}").HandlerFunc(s.DeleteItem)
	// submissions
	mux.Methods("GET").Path("/submissions").HandlerFunc(s.ListSubmissions)
	submissions := mux.PathPrefix("/submissions").Subrouter()
	submissions.Methods("PUT").Path("/{id:" + IDRegexp + "}").HandlerFunc(s.PutSubmission)
	submissions.Methods("GET").Path("/{id:" + IDRegexp + "}").HandlerFunc(s.GetSubmission)
	// leaderboards
	leaderboards := mux.PathPrefix("/leaderboards").Subrouter()
	leaderboards.Methods("GET").Path("/{benchmark:" + BenchmarkRegexp + "}").HandlerFunc(s.GetLeaderboard)
	leaderboards.Methods("PUT").Path("/{benchmark:" + BenchmarkRegexp + "}").HandlerFunc(s.PutLeaderboardEntry)
	// login
	mux.Methods("GET").Path("/oauth").HandlerFunc(s.Oauth)

	return mux
}
