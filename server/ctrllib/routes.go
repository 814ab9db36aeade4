package ctrllib

import (
	"net/http"

	"github.com/gorilla/mux"

	"go.senan.xyz/stash/server/ctrllib/libui"
)

func AddRoutes(c *Controller, r *mux.Router) {
	// public routes (creates session)
	r.Use(c.WithSession)
	r.Handle("/", c.H(c.ServeHome)).Methods("GET")
	r.Handle("/login", c.H(c.ServeLogin)).Methods("GET")
	r.Handle("/login", c.H(c.ServeLoginDo)).Methods("POST")
	r.Handle("/register", c.H(c.ServeRegister)).Methods("GET")
	r.Handle("/register", c.H(c.ServeRegisterDo)).Methods("POST")

	r.PathPrefix("/static").Handler(http.FileServer(http.FS(libui.StaticFS)))

	// user routes (if session is valid)
	routUser := r.NewRoute().Subrouter()
	routUser.Use(c.WithUserSession)
	routUser.Handle("/logout", c.H(c.ServeLogout)).Methods("GET")
	routUser.Handle("/upload", c.H(c.ServeUpload)).Methods("GET")
	routUser.Handle("/upload", c.H(c.ServeUploadDo)).Methods("POST")
	routUser.Handle("/edit_metadata/{id:[0-9]+}", c.H(c.ServeEditMetadata)).Methods("GET")
	routUser.Handle("/edit_metadata/{id:[0-9]+}", c.H(c.ServeEditMetadataDo)).Methods("POST")
	routUser.Handle("/bulk_action", c.H(c.ServeBulkActionDo)).Methods("POST")
	routUser.Handle("/process_bulk_edit", c.H(c.ServeProcessBulkEditDo)).Methods("POST")
	routUser.Handle("/process_global_bulk_edit", c.H(c.ServeProcessGlobalBulkEditDo)).Methods("POST")
	routUser.Handle("/delete_track/{id:[0-9]+}", c.H(c.ServeDeleteTrackDo)).Methods("POST")

	// middlewares should be run for not found handler
	// https://github.com/gorilla/mux/issues/416
	notFoundHandler := c.H(c.ServeNotFound)
	notFoundRoute := r.NewRoute().Handler(notFoundHandler)
	r.NotFoundHandler = notFoundRoute.GetHandler()
}
