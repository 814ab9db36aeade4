package ctrllib

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"go.senan.xyz/stash/server/db"
	"go.senan.xyz/stash/server/library"
)

func (c *Controller) ServeUpload(r *http.Request) *Response {
	return &Response{template: "upload.tmpl"}
}

func (c *Controller) ServeUploadDo(r *http.Request) *Response {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return &Response{
			err:  "couldn't parse multipart",
			code: 500,
		}
	}
	user := r.Context().Value(CtxUser).(*db.User)
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return &Response{
			redirect: "/upload",
			flashW:   []string{"please select at least one file"},
		}
	}
	var uploads []library.Upload
	var warnings []string
	for _, header := range headers {
		if err := c.validateUploadExt(header.Filename); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %q: %v", header.Filename, err))
			continue
		}
		file, err := header.Open()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("couldn't open %q", header.Filename))
			continue
		}
		defer file.Close()
		uploads = append(uploads, library.Upload{
			Filename: header.Filename,
			Data:     file,
		})
	}
	summary := c.Library.UploadAll(user, uploads)
	for _, err := range summary.Errors {
		// trim length of error to not overflow the flash
		warnings = append(warnings, fmt.Sprintf("%.100s", err.Error()))
	}
	return &Response{
		redirect: "/",
		flashN:   []string{fmt.Sprintf("%d file(s) uploaded", summary.Submitted)},
		flashW:   warnings,
	}
}

func (c *Controller) ServeEditMetadata(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	track, err := c.Library.GetTrack(user, id)
	switch {
	case errors.Is(err, library.ErrNotFound):
		return &Response{err: "track not found", code: 404}
	case errors.Is(err, library.ErrNotOwner):
		return &Response{
			redirect: "/",
			flashW:   []string{"you can only edit your own tracks"},
		}
	case err != nil:
		return &Response{err: "couldn't load track", code: 500}
	}
	return &Response{
		template: "edit_metadata.tmpl",
		data:     &templateData{Track: track},
	}
}

func (c *Controller) ServeEditMetadataDo(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	changes := library.TrackChanges{
		Title:  r.FormValue("title"),
		Artist: r.FormValue("artist"),
		Album:  r.FormValue("album"),
		Genre:  r.FormValue("genre"),
	}
	err := c.Library.EditTrack(user, id, changes)
	switch {
	case errors.Is(err, library.ErrNotFound):
		return &Response{err: "track not found", code: 404}
	case errors.Is(err, library.ErrNotOwner):
		return &Response{
			redirect: "/",
			flashW:   []string{"you can only edit your own tracks"},
		}
	case err != nil:
		return &Response{err: "couldn't update track", code: 500}
	}
	return &Response{
		redirect: "/",
		flashN:   []string{"track updated"},
	}
}

func (c *Controller) ServeBulkActionDo(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	trackIDs := formIDs(r, "selected_tracks")
	if len(trackIDs) == 0 {
		return &Response{
			redirect: "/",
			flashW:   []string{"no tracks selected"},
		}
	}
	action := r.FormValue("action")
	switch action {
	case "Delete", "Bulk Delete":
		deleted, storeErrs, err := c.Library.DeleteTracks(user, trackIDs)
		switch {
		case errors.Is(err, library.ErrNotOwner):
			return &Response{
				redirect: "/",
				flashW:   []string{"you can only delete your own tracks"},
			}
		case err != nil:
			return &Response{err: "couldn't delete tracks", code: 500}
		}
		return &Response{
			redirect: "/",
			flashN:   []string{fmt.Sprintf("%d track(s) deleted", deleted)},
			flashW:   storeErrs.Strings(),
		}
	case "Edit", "Bulk Edit":
		tracks, err := c.Library.TracksByIDs(user, trackIDs)
		if err != nil {
			return &Response{err: "couldn't load tracks", code: 500}
		}
		if len(tracks) == 0 {
			return &Response{
				redirect: "/",
				flashW:   []string{"no tracks selected"},
			}
		}
		return &Response{
			template: "bulk_edit.tmpl",
			data:     &templateData{SelectedTracks: tracks},
		}
	default:
		return &Response{
			redirect: "/",
			flashW:   []string{fmt.Sprintf("unknown action %q", action)},
		}
	}
}

func (c *Controller) ServeProcessBulkEditDo(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	trackIDs := formIDs(r, "track_ids")
	edits := map[int]library.TrackChanges{}
	for _, id := range trackIDs {
		edits[id] = library.TrackChanges{
			Title:  r.FormValue(fmt.Sprintf("title_%d", id)),
			Artist: r.FormValue(fmt.Sprintf("artist_%d", id)),
			Album:  r.FormValue(fmt.Sprintf("album_%d", id)),
			Genre:  r.FormValue(fmt.Sprintf("genre_%d", id)),
		}
	}
	updated, err := c.Library.BulkUpdate(user, edits)
	if err != nil {
		return &Response{err: "couldn't update tracks", code: 500}
	}
	return &Response{
		redirect: "/",
		flashN:   []string{fmt.Sprintf("%d track(s) updated", updated)},
	}
}

func (c *Controller) ServeProcessGlobalBulkEditDo(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	trackIDs := formIDs(r, "track_ids")
	updated, err := c.Library.GlobalBulkUpdate(user, trackIDs,
		r.FormValue("global_album"),
		r.FormValue("global_genre"),
		r.FormValue("global_artist"),
	)
	if err != nil {
		return &Response{err: "couldn't update tracks", code: 500}
	}
	return &Response{
		redirect: "/",
		flashN:   []string{fmt.Sprintf("%d track(s) updated", updated)},
	}
}

func (c *Controller) ServeDeleteTrackDo(r *http.Request) *Response {
	user := r.Context().Value(CtxUser).(*db.User)
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	deleted, storeErrs, err := c.Library.DeleteTracks(user, []int{id})
	switch {
	case errors.Is(err, library.ErrNotOwner):
		return &Response{
			redirect: "/",
			flashW:   []string{"you can only delete your own tracks"},
		}
	case err != nil:
		return &Response{err: "couldn't delete track", code: 500}
	case deleted == 0:
		return &Response{err: "track not found", code: 404}
	}
	return &Response{
		redirect: "/",
		flashN:   []string{"track deleted"},
		flashW:   storeErrs.Strings(),
	}
}

func formIDs(r *http.Request, field string) []int {
	_ = r.ParseForm()
	var ids []int
	for _, raw := range r.PostForm[field] {
		if id, err := strconv.Atoi(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
