// Package ctrllib provides the HTTP handlers for the library web UI
package ctrllib

import (
	"encoding/gob"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/dustin/go-humanize"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/oxtoacart/bpool"
	"github.com/wader/gormstore"

	"go.senan.xyz/stash"
	"go.senan.xyz/stash/server/ctrlbase"
	"go.senan.xyz/stash/server/ctrllib/libui"
	"go.senan.xyz/stash/server/db"
)

type CtxKey int

const (
	CtxUser CtxKey = iota
	CtxSession
)

// extendFromFS /extends/ the given template with every file matching
// the glob
func extendFromFS(b *template.Template, fsys fs.FS, glob string) *template.Template {
	paths, err := fs.Glob(fsys, glob)
	if err != nil {
		panic(fmt.Sprintf("globbing %q: %v", glob, err))
	}
	for _, p := range paths {
		tmplStr, err := fs.ReadFile(fsys, p)
		if err != nil {
			panic(fmt.Sprintf("reading template %q: %v", p, err))
		}
		b = template.Must(b.Parse(string(tmplStr)))
	}
	return b
}

// pagesFromFS /clones/ the given template for every file matching the
// glob, extends it, and inserts it into a new map
func pagesFromFS(b *template.Template, fsys fs.FS, glob string) map[string]*template.Template {
	paths, err := fs.Glob(fsys, glob)
	if err != nil {
		panic(fmt.Sprintf("globbing %q: %v", glob, err))
	}
	ret := map[string]*template.Template{}
	for _, p := range paths {
		tmplStr, err := fs.ReadFile(fsys, p)
		if err != nil {
			panic(fmt.Sprintf("reading template %q: %v", p, err))
		}
		clone := template.Must(b.Clone())
		ret[filepath.Base(p)] = template.Must(clone.Parse(string(tmplStr)))
	}
	return ret
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"noCache": func(in string) string {
			parsed, _ := url.Parse(in)
			params := parsed.Query()
			params.Set("v", stash.Version)
			parsed.RawQuery = params.Encode()
			return parsed.String()
		},
		"date": func(in time.Time) string {
			return strings.ToLower(in.Format("Jan 02, 2006"))
		},
		"dateHuman": humanize.Time,
	}
}

type Controller struct {
	*ctrlbase.Controller
	buffPool    *bpool.BufferPool
	templates   map[string]*template.Template
	sessDB      *gormstore.Store
	allowedExts []string
}

func New(b *ctrlbase.Controller, allowedExts []string) *Controller {
	sessionKey := []byte(b.DB.GetSetting("session_key"))
	if len(sessionKey) == 0 {
		sessionKey = securecookie.GenerateRandomKey(32)
		b.DB.SetSetting("session_key", string(sessionKey))
	}
	tmplBase := template.
		New("layout").
		Funcs(sprig.FuncMap()).
		Funcs(funcMap()).       // static
		Funcs(template.FuncMap{ // from base
			"path": b.Path,
		})
	tmplBase = extendFromFS(tmplBase, libui.TemplatesFS, "layout.tmpl")
	tmplBase = extendFromFS(tmplBase, libui.TemplatesFS, "partials/*.tmpl")
	sessDB := gormstore.New(b.DB.DB, sessionKey)
	sessDB.SessionOpts.HttpOnly = true
	sessDB.SessionOpts.SameSite = http.SameSiteLaxMode
	return &Controller{
		Controller:  b,
		buffPool:    bpool.NewBufferPool(64),
		templates:   pagesFromFS(tmplBase, libui.TemplatesFS, "pages/*.tmpl"),
		sessDB:      sessDB,
		allowedExts: allowedExts,
	}
}

// CleanupSessions deletes expired sessions on a timer. blocks forever
func (c *Controller) CleanupSessions(interval time.Duration) {
	ticker := time.NewTicker(interval)
	for range ticker.C {
		c.sessDB.Cleanup()
	}
}

type templateData struct {
	// common
	Flashes []interface{}
	User    *db.User
	Version string
	// home
	Tracks      []*db.Track
	TrackCount  int
	ArtistCount int
	// edit forms
	Track          *db.Track
	SelectedTracks []*db.Track
}

type Response struct {
	// code is 200
	template string
	data     *templateData
	// code is 303
	redirect string
	flashN   []string // normal
	flashW   []string // warning
	// code is >= 400
	code int
	err  string
}

type handlerLib func(r *http.Request) *Response

func (c *Controller) H(h handlerLib) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h(r)
		session, ok := r.Context().Value(CtxSession).(*sessions.Session)
		if ok {
			sessAddFlashN(session, resp.flashN)
			sessAddFlashW(session, resp.flashW)
			if err := session.Save(r, w); err != nil {
				http.Error(w, fmt.Sprintf("error saving session: %v", err), 500)
				return
			}
		}
		if resp.redirect != "" {
			to := resp.redirect
			if strings.HasPrefix(to, "/") {
				to = c.Path(to)
			}
			http.Redirect(w, r, to, http.StatusSeeOther)
			return
		}
		if resp.err != "" {
			http.Error(w, resp.err, resp.code)
			return
		}
		if resp.template == "" {
			http.Error(w, "useless handler return", 500)
			return
		}
		if resp.data == nil {
			resp.data = &templateData{}
		}
		resp.data.Version = stash.Version
		if session != nil {
			resp.data.Flashes = session.Flashes()
			if err := session.Save(r, w); err != nil {
				http.Error(w, fmt.Sprintf("error saving session: %v", err), 500)
				return
			}
		}
		if user, ok := r.Context().Value(CtxUser).(*db.User); ok {
			resp.data.User = user
		}
		buff := c.buffPool.Get()
		defer c.buffPool.Put(buff)
		tmpl, ok := c.templates[resp.template]
		if !ok {
			http.Error(w, fmt.Sprintf("finding template %q", resp.template), 500)
			return
		}
		if err := tmpl.Execute(buff, resp.data); err != nil {
			http.Error(w, fmt.Sprintf("executing template: %v", err), 500)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if resp.code != 0 {
			w.WriteHeader(resp.code)
		}
		if _, err := buff.WriteTo(w); err != nil {
			log.Printf("error writing to response buffer: %v\n", err)
		}
	})
}

// ## begin utilities
// ## begin utilities
// ## begin utilities

type FlashType string

const (
	FlashNormal  = FlashType("normal")
	FlashWarning = FlashType("warning")
)

type Flash struct {
	Message string
	Type    FlashType
}

func init() {
	gob.Register(Flash{})
}

func sessAddFlashN(s *sessions.Session, messages []string) {
	sessAddFlash(s, messages, FlashNormal)
}

func sessAddFlashW(s *sessions.Session, messages []string) {
	sessAddFlash(s, messages, FlashWarning)
}

func sessAddFlash(s *sessions.Session, messages []string, flashT FlashType) {
	if len(messages) == 0 {
		return
	}
	for i, message := range messages {
		if i > 6 {
			break
		}
		s.AddFlash(Flash{
			Message: message,
			Type:    flashT,
		})
	}
}

func sessLogSave(s *sessions.Session, w http.ResponseWriter, r *http.Request) {
	if err := s.Save(r, w); err != nil {
		log.Printf("error saving session: %v\n", err)
	}
}

// ## begin validation
// ## begin validation
// ## begin validation

var (
	errValiNoUsername        = errors.New("please enter a username")
	errValiNoEmail           = errors.New("please enter a valid email address")
	errValiPasswordAllFields = errors.New("please enter the password twice")
	errValiPasswordsNotSame  = errors.New("passwords entered were not the same")
)

func validateUsername(username string) error {
	if username == "" {
		return errValiNoUsername
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return errValiNoEmail
	}
	return nil
}

func validatePasswords(pOne, pTwo string) error {
	if pOne == "" || pTwo == "" {
		return errValiPasswordAllFields
	}
	if !(pOne == pTwo) {
		return errValiPasswordsNotSame
	}
	return nil
}

func (c *Controller) validateUploadExt(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	for _, allowed := range c.allowedExts {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file type %q is not allowed", ext)
}
