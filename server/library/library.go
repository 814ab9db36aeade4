// Package library implements the upload pipeline and the catalog
// operations behind the web UI
package library

import (
	"fmt"
	"io"
	"os"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	"go.senan.xyz/stash/server/blobstore"
	"go.senan.xyz/stash/server/db"
	"go.senan.xyz/stash/server/fileutil"
	"go.senan.xyz/stash/server/library/tags"
	"go.senan.xyz/stash/server/multierr"
)

var (
	ErrNotFound = errors.New("track not found")
	ErrNotOwner = errors.New("track belongs to another user")
)

type Library struct {
	db     *db.DB
	blobs  blobstore.Store
	tagger tags.Reader
}

func New(dbc *db.DB, blobs blobstore.Store, tagger tags.Reader) *Library {
	return &Library{
		db:     dbc,
		blobs:  blobs,
		tagger: tagger,
	}
}

// ResolveArtist finds the artist whose name matches case-insensitively,
// creating a row with the given spelling if none exists. the returned
// row has its ID set before the outer transaction commits.
// a concurrent create can slip past the existence check here. the no
// case unique index rejects the losing insert, and we take the row
// that won instead
func ResolveArtist(tx *gorm.DB, name string) (*db.Artist, error) {
	var artist db.Artist
	err := tx.
		Where("name=? COLLATE NOCASE", name).
		First(&artist).
		Error
	if err == nil {
		return &artist, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return nil, errors.Wrap(err, "lookup artist")
	}
	artist = db.Artist{Name: name}
	if err := tx.Create(&artist).Error; err == nil {
		return &artist, nil
	}
	err = tx.
		Where("name=? COLLATE NOCASE", name).
		First(&artist).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "re-fetch artist after insert conflict")
	}
	return &artist, nil
}

type Upload struct {
	Filename string
	Data     io.Reader
}

type UploadSummary struct {
	Submitted int
	Created   int
	Skipped   int
	Errors    multierr.Err
}

// UploadAll runs the pipeline for each payload and commits every staged
// track row together at the end. a failure on one file is collected and
// doesn't stop the rest of the batch
func (l *Library) UploadAll(user *db.User, uploads []Upload) *UploadSummary {
	summary := &UploadSummary{Submitted: len(uploads)}
	l.db.WithTx(func(tx *gorm.DB) {
		for _, upload := range uploads {
			created, err := l.uploadOne(tx, user, upload)
			switch {
			case err != nil:
				summary.Errors.Add(fmt.Errorf("uploading %q: %w", upload.Filename, err))
			case created:
				summary.Created++
			default:
				summary.Skipped++
			}
		}
	})
	return summary
}

func (l *Library) uploadOne(tx *gorm.DB, user *db.User, upload Upload) (bool, error) {
	staged, err := os.CreateTemp("", "stash-upload-*")
	if err != nil {
		return false, errors.Wrap(err, "create staging file")
	}
	defer os.Remove(staged.Name())
	if _, err := io.Copy(staged, upload.Data); err != nil {
		staged.Close()
		return false, errors.Wrap(err, "stage payload")
	}
	if err := staged.Close(); err != nil {
		return false, errors.Wrap(err, "close staging file")
	}

	parsed, err := l.tagger.Read(staged.Name())
	if err != nil {
		return false, errors.Wrap(err, "read tags")
	}
	artist, err := ResolveArtist(tx, parsed.SomeArtist())
	if err != nil {
		return false, err
	}

	// same real title and same artist means we already have this one
	title := parsed.SomeTitle()
	if title != tags.UnknownTitle {
		var dup db.Track
		err := tx.
			Where("title=? AND artist_id=?", title, artist.ID).
			First(&dup).
			Error
		if err == nil {
			return false, nil
		}
		if !gorm.IsRecordNotFoundError(err) {
			return false, errors.Wrap(err, "duplicate check")
		}
	}

	payload, err := os.Open(staged.Name())
	if err != nil {
		return false, errors.Wrap(err, "reopen staged payload")
	}
	defer payload.Close()
	key := fmt.Sprintf("%d/%s", user.ID, fileutil.Safe(upload.Filename))
	locator, err := l.blobs.Put(key, payload)
	if err != nil {
		return false, errors.Wrap(err, "store payload")
	}

	track := db.Track{
		Title:    title,
		Album:    parsed.SomeAlbum(),
		Genre:    parsed.SomeGenre(),
		Filename: upload.Filename,
		Locator:  locator,
		ArtistID: artist.ID,
		UserID:   user.ID,
	}
	if err := tx.Create(&track).Error; err != nil {
		return false, errors.Wrap(err, "create track row")
	}
	return true, nil
}

// TrackChanges carries replacement values for an edit. a blank field
// means keep the current value
type TrackChanges struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

func applyChanges(tx *gorm.DB, track *db.Track, changes TrackChanges) error {
	if changes.Title != "" {
		track.Title = changes.Title
	}
	if changes.Album != "" {
		track.Album = changes.Album
	}
	if changes.Genre != "" {
		track.Genre = changes.Genre
	}
	if changes.Artist != "" {
		artist, err := ResolveArtist(tx, changes.Artist)
		if err != nil {
			return err
		}
		track.ArtistID = artist.ID
		track.Artist = nil
	}
	return nil
}

func (l *Library) EditTrack(user *db.User, trackID int, changes TrackChanges) error {
	var track db.Track
	err := l.db.
		Where("id=?", trackID).
		First(&track).
		Error
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "find track")
	}
	if track.UserID != user.ID {
		return ErrNotOwner
	}
	var editErr error
	l.db.WithTx(func(tx *gorm.DB) {
		if err := applyChanges(tx, &track, changes); err != nil {
			editErr = err
			return
		}
		if err := tx.Save(&track).Error; err != nil {
			editErr = errors.Wrap(err, "save track")
		}
	})
	return editErr
}

// DeleteTracks removes the given tracks and their stored audio. if any
// track in the batch belongs to another user nothing at all is deleted.
// a blob store failure doesn't stop the batch, the rows go regardless
// and the failures come back for reporting
func (l *Library) DeleteTracks(user *db.User, trackIDs []int) (int, multierr.Err, error) {
	var tracks []*db.Track
	err := l.db.
		Where("id IN (?)", trackIDs).
		Find(&tracks).
		Error
	if err != nil {
		return 0, nil, errors.Wrap(err, "find tracks")
	}
	for _, track := range tracks {
		if track.UserID != user.ID {
			return 0, nil, ErrNotOwner
		}
	}
	var storeErrs multierr.Err
	ids := make([]int, 0, len(tracks))
	for _, track := range tracks {
		if err := l.blobs.Delete(track.Locator); err != nil {
			storeErrs.Add(fmt.Errorf("deleting audio for %q: %w", track.Title, err))
		}
		ids = append(ids, track.ID)
	}
	err = l.db.WithTxChunked(ids, func(tx *gorm.DB, chunk []int) error {
		return tx.
			Where("id IN (?)", chunk).
			Delete(db.Track{}).
			Error
	})
	if err != nil {
		return 0, storeErrs, errors.Wrap(err, "delete track rows")
	}
	return len(ids), storeErrs, nil
}

// BulkUpdate applies per-track field edits in one commit. ids not owned
// by the user are dropped from the batch, not reported
func (l *Library) BulkUpdate(user *db.User, edits map[int]TrackChanges) (int, error) {
	ids := make([]int, 0, len(edits))
	for id := range edits {
		ids = append(ids, id)
	}
	tracks, err := l.TracksByIDs(user, ids)
	if err != nil {
		return 0, err
	}
	var updated int
	var updateErr error
	l.db.WithTx(func(tx *gorm.DB) {
		for _, track := range tracks {
			if err := applyChanges(tx, track, edits[track.ID]); err != nil {
				updateErr = err
				return
			}
			if err := tx.Save(track).Error; err != nil {
				updateErr = errors.Wrap(err, "save track")
				return
			}
			updated++
		}
	})
	return updated, updateErr
}

// GlobalBulkUpdate overwrites album/genre/artist with one value across
// the whole selection. blank fields are left alone, ids not owned by
// the user are dropped
func (l *Library) GlobalBulkUpdate(user *db.User, trackIDs []int, album, genre, artistName string) (int, error) {
	tracks, err := l.TracksByIDs(user, trackIDs)
	if err != nil {
		return 0, err
	}
	var updated int
	var updateErr error
	l.db.WithTx(func(tx *gorm.DB) {
		changes := TrackChanges{Album: album, Genre: genre, Artist: artistName}
		for _, track := range tracks {
			if err := applyChanges(tx, track, changes); err != nil {
				updateErr = err
				return
			}
			if err := tx.Save(track).Error; err != nil {
				updateErr = errors.Wrap(err, "save track")
				return
			}
			updated++
		}
	})
	return updated, updateErr
}

func (l *Library) GetTrack(user *db.User, trackID int) (*db.Track, error) {
	var track db.Track
	err := l.db.
		Where("id=?", trackID).
		Preload("Artist").
		First(&track).
		Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find track")
	}
	if track.UserID != user.ID {
		return nil, ErrNotOwner
	}
	return &track, nil
}

func (l *Library) TracksFor(user *db.User) ([]*db.Track, error) {
	var tracks []*db.Track
	err := l.db.
		Where("user_id=?", user.ID).
		Preload("Artist").
		Order("created_at DESC, id DESC").
		Find(&tracks).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "find tracks")
	}
	return tracks, nil
}

// TracksByIDs loads the selection, silently filtered to rows the user
// owns
func (l *Library) TracksByIDs(user *db.User, trackIDs []int) ([]*db.Track, error) {
	var tracks []*db.Track
	err := l.db.
		Where("id IN (?) AND user_id=?", trackIDs, user.ID).
		Preload("Artist").
		Find(&tracks).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "find tracks")
	}
	return tracks, nil
}
