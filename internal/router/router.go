// Package router wires the HTTP handlers, middleware and operational
// endpoints into one gorilla/mux router.
package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/taskboard/app/internal/handlers"
	"github.com/taskboard/app/internal/middleware"
)

// Setup builds the application router.
func Setup(env *handlers.Env) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging(env.Logger), middleware.Metrics, middleware.SecurityHeaders)
	r.NotFoundHandler = middleware.RequestID(middleware.SecurityHeaders(env.NotFound()))

	r.Handle("/metrics", middleware.MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", env.Healthz()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/register", env.APIRegister()).Methods(http.MethodPost)
	api.HandleFunc("/login", env.APILogin()).Methods(http.MethodPost)
	api.HandleFunc("/logout", env.APILogout()).Methods(http.MethodPost)
	api.HandleFunc("/session", env.APISession()).Methods(http.MethodGet)

	tasks := r.PathPrefix("/tasks").Subrouter()
	tasks.Use(env.RequireSession)
	for _, p := range []string{"", "/"} {
		tasks.HandleFunc(p, env.ListTasks()).Methods(http.MethodGet)
		tasks.HandleFunc(p, env.CreateTask()).Methods(http.MethodPost)
	}
	tasks.HandleFunc("/{id}", env.GetTask()).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}", env.ReplaceTask()).Methods(http.MethodPut)
	tasks.HandleFunc("/{id}", env.PatchTask()).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}", env.DeleteTask()).Methods(http.MethodDelete)

	r.HandleFunc("/login", env.LoginPage()).Methods(http.MethodGet)
	r.HandleFunc("/login", env.Login()).Methods(http.MethodPost)
	r.HandleFunc("/register", env.RegisterPage()).Methods(http.MethodGet)
	r.HandleFunc("/register", env.Register()).Methods(http.MethodPost)
	r.HandleFunc("/logout", env.Logout()).Methods(http.MethodPost)
	r.Handle("/", env.RequirePageSession(env.IndexPage())).Methods(http.MethodGet)

	return r
}
