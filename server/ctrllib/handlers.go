package ctrllib

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"go.senan.xyz/stash/server/db"
)

func (c *Controller) ServeNotFound(r *http.Request) *Response {
	return &Response{template: "not_found.tmpl", code: 404}
}

func (c *Controller) ServeHome(r *http.Request) *Response {
	data := &templateData{}
	session := r.Context().Value(CtxSession).(*sessions.Session)
	username, ok := session.Values["user"].(string)
	if !ok {
		// logged out home is just the login prompt
		return &Response{template: "home.tmpl", data: data}
	}
	user := c.DB.GetUserFromName(username)
	if user == nil {
		return &Response{template: "home.tmpl", data: data}
	}
	data.User = user
	tracks, err := c.Library.TracksFor(user)
	if err != nil {
		return &Response{err: "couldn't load tracks", code: 500}
	}
	data.Tracks = tracks
	data.TrackCount = len(tracks)
	c.DB.
		Model(&db.Artist{}).
		Where("id IN (SELECT artist_id FROM tracks WHERE user_id=?)", user.ID).
		Count(&data.ArtistCount)
	return &Response{template: "home.tmpl", data: data}
}

func (c *Controller) ServeLogin(r *http.Request) *Response {
	session := r.Context().Value(CtxSession).(*sessions.Session)
	if _, ok := session.Values["user"].(string); ok {
		return &Response{redirect: "/"}
	}
	return &Response{template: "login.tmpl"}
}

func (c *Controller) ServeLoginDo(r *http.Request) *Response {
	session := r.Context().Value(CtxSession).(*sessions.Session)
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		return &Response{
			redirect: "/login",
			flashW:   []string{"please provide both a username and password"},
		}
	}
	user := c.DB.GetUserFromName(username)
	if user == nil || !user.CheckPassword(password) {
		return &Response{
			redirect: "/login",
			flashW:   []string{"invalid username / password"},
		}
	}
	// put the user name into the session. future endpoints after this one
	// are wrapped with WithUserSession() which will get the name from the
	// session and put the row into the request context
	session.Values["user"] = user.Name
	return &Response{redirect: "/"}
}

func (c *Controller) ServeLogout(r *http.Request) *Response {
	session := r.Context().Value(CtxSession).(*sessions.Session)
	session.Options.MaxAge = -1
	return &Response{redirect: "/"}
}

func (c *Controller) ServeRegister(r *http.Request) *Response {
	session := r.Context().Value(CtxSession).(*sessions.Session)
	if _, ok := session.Values["user"].(string); ok {
		return &Response{redirect: "/"}
	}
	return &Response{template: "register.tmpl"}
}

func (c *Controller) ServeRegisterDo(r *http.Request) *Response {
	username := r.FormValue("username")
	if err := validateUsername(username); err != nil {
		return &Response{redirect: "/register", flashW: []string{err.Error()}}
	}
	email := r.FormValue("email")
	if err := validateEmail(email); err != nil {
		return &Response{redirect: "/register", flashW: []string{err.Error()}}
	}
	passwordOne := r.FormValue("password_one")
	passwordTwo := r.FormValue("password_two")
	if err := validatePasswords(passwordOne, passwordTwo); err != nil {
		return &Response{redirect: "/register", flashW: []string{err.Error()}}
	}
	user := db.User{
		Name:  username,
		Email: email,
	}
	if err := user.SetPassword(passwordOne); err != nil {
		return &Response{err: "couldn't hash password", code: 500}
	}
	if err := c.DB.Create(&user).Error; err != nil {
		// name or email already taken
		return &Response{
			redirect: "/register",
			flashW:   []string{fmt.Sprintf("could not register %q: %v", username, err)},
		}
	}
	return &Response{
		redirect: "/login",
		flashN:   []string{"you are now registered!"},
	}
}
