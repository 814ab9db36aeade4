package library_test

import (
	"fmt"
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/stash/server/db"
	"go.senan.xyz/stash/server/library"
	"go.senan.xyz/stash/server/library/tags"
	"go.senan.xyz/stash/server/mocklib"
)

func TestUploadUntaggedGetsPlaceholders(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	summary := m.Upload(user, "mystery.mp3", nil)
	require.Empty(t, summary.Errors)
	require.Equal(t, 1, summary.Created)

	var track db.Track
	require.NoError(t, m.DB().Preload("Artist").First(&track).Error)
	assert.Equal(t, tags.UnknownTitle, track.Title)
	assert.Equal(t, tags.UnknownAlbum, track.Album)
	assert.Equal(t, tags.UnknownGenre, track.Genre)
	assert.Equal(t, tags.UnknownArtist, track.Artist.Name)
}

func TestUploadDuplicateSkipped(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	first := m.Upload(user, "yesterday.mp3", map[string]string{
		"title": "Yesterday", "artist": "Beatles",
	})
	require.Equal(t, 1, first.Created)

	// same title, artist differs only by case
	second := m.Upload(user, "yesterday-again.mp3", map[string]string{
		"title": "Yesterday", "artist": "BEATLES",
	})
	require.Empty(t, second.Errors)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, m.TrackCount())
	assert.Equal(t, 1, m.ArtistCount())
}

func TestUploadUntaggedNeverDeduped(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	// placeholder titles don't count as duplicates of each other
	m.Upload(user, "one.mp3", nil)
	summary := m.Upload(user, "two.mp3", nil)
	require.Equal(t, 1, summary.Created)
	assert.Equal(t, 2, m.TrackCount())
}

func TestUploadBatchContinuesPastFailures(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	m.Store().FailPut = true
	summary := m.Upload(user, "doomed.mp3", map[string]string{"title": "Doomed", "artist": "A"})
	require.Equal(t, 1, summary.Errors.Len())
	assert.Equal(t, 0, m.TrackCount())

	m.Store().FailPut = false
	summary = m.Upload(user, "fine.mp3", map[string]string{"title": "Fine", "artist": "A"})
	require.Empty(t, summary.Errors)
	assert.Equal(t, 1, m.TrackCount())
}

func TestResolveArtistIdempotentNoCase(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()

	var firstID, secondID int
	m.DB().WithTx(func(tx *gorm.DB) {
		artist, err := library.ResolveArtist(tx, "The Beatles")
		require.NoError(t, err)
		require.NotZero(t, artist.ID)
		firstID = artist.ID

		again, err := library.ResolveArtist(tx, "the beatles")
		require.NoError(t, err)
		secondID = again.ID
	})
	assert.Equal(t, firstID, secondID)
	assert.Equal(t, 1, m.ArtistCount())

	// the original spelling is the one kept
	var artist db.Artist
	require.NoError(t, m.DB().First(&artist, firstID).Error)
	assert.Equal(t, "The Beatles", artist.Name)
}

func TestEditTrackPartial(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	m.Upload(user, "yesterday.mp3", map[string]string{
		"title": "Yesterday", "artist": "Beatles", "album": "Help", "genre": "Rock",
	})
	var track db.Track
	require.NoError(t, m.DB().First(&track).Error)

	err := m.Library().EditTrack(user, track.ID, library.TrackChanges{Album: "Help!"})
	require.NoError(t, err)

	var after db.Track
	require.NoError(t, m.DB().Preload("Artist").First(&after, track.ID).Error)
	assert.Equal(t, "Help!", after.Album)
	assert.Equal(t, "Yesterday", after.Title)
	assert.Equal(t, "Rock", after.Genre)
	assert.Equal(t, "Beatles", after.Artist.Name)
}

func TestEditTrackRepointsArtist(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	m.Upload(user, "song.mp3", map[string]string{"title": "Song", "artist": "Beatles"})
	var track db.Track
	require.NoError(t, m.DB().First(&track).Error)

	require.NoError(t, m.Library().EditTrack(user, track.ID, library.TrackChanges{Artist: "The Kinks"}))

	var after db.Track
	require.NoError(t, m.DB().Preload("Artist").First(&after, track.ID).Error)
	assert.Equal(t, "The Kinks", after.Artist.Name)
	// old artist row stays behind
	assert.Equal(t, 2, m.ArtistCount())
}

func TestEditTrackOwnershipEnforced(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	alice := m.AddUser("alice")
	bob := m.AddUser("bob")
	m.Upload(alice, "song.mp3", map[string]string{"title": "Song", "artist": "A"})
	var track db.Track
	require.NoError(t, m.DB().First(&track).Error)

	err := m.Library().EditTrack(bob, track.ID, library.TrackChanges{Title: "Stolen"})
	assert.ErrorIs(t, err, library.ErrNotOwner)

	var after db.Track
	require.NoError(t, m.DB().First(&after, track.ID).Error)
	assert.Equal(t, "Song", after.Title)
}

func TestEditTrackNotFound(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	err := m.Library().EditTrack(user, 42, library.TrackChanges{Title: "x"})
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestDeleteTracksRemovesRowsAndBlobs(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	m.Upload(user, "one.mp3", map[string]string{"title": "One", "artist": "A"})
	m.Upload(user, "two.mp3", map[string]string{"title": "Two", "artist": "A"})
	require.Len(t, m.Store().Blobs, 2)

	var tracks []*db.Track
	require.NoError(t, m.DB().Find(&tracks).Error)
	deleted, storeErrs, err := m.Library().DeleteTracks(user, []int{tracks[0].ID, tracks[1].ID})
	require.NoError(t, err)
	require.Empty(t, storeErrs)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, m.TrackCount())
	assert.Empty(t, m.Store().Blobs)
}

func TestDeleteTracksAllOrNothingOwnership(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	alice := m.AddUser("alice")
	bob := m.AddUser("bob")
	m.Upload(alice, "mine.mp3", map[string]string{"title": "Mine", "artist": "A"})
	m.Upload(bob, "theirs.mp3", map[string]string{"title": "Theirs", "artist": "B"})

	var tracks []*db.Track
	require.NoError(t, m.DB().Find(&tracks).Error)
	deleted, _, err := m.Library().DeleteTracks(alice, []int{tracks[0].ID, tracks[1].ID})
	assert.ErrorIs(t, err, library.ErrNotOwner)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 2, m.TrackCount())
	assert.Len(t, m.Store().Blobs, 2)
}

func TestDeleteTrackRowGoesEvenWhenBlobDeleteFails(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	m.Upload(user, "song.mp3", map[string]string{"title": "Song", "artist": "A"})
	var track db.Track
	require.NoError(t, m.DB().First(&track).Error)

	m.Store().FailDelete = true
	deleted, storeErrs, err := m.Library().DeleteTracks(user, []int{track.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, storeErrs.Len())
	assert.Equal(t, 0, m.TrackCount())
}

func TestBulkUpdateFiltersNonOwned(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	alice := m.AddUser("alice")
	bob := m.AddUser("bob")
	m.Upload(alice, "mine.mp3", map[string]string{"title": "Mine", "artist": "A"})
	m.Upload(bob, "theirs.mp3", map[string]string{"title": "Theirs", "artist": "B"})

	var mine, theirs db.Track
	require.NoError(t, m.DB().Where("title=?", "Mine").First(&mine).Error)
	require.NoError(t, m.DB().Where("title=?", "Theirs").First(&theirs).Error)

	updated, err := m.Library().BulkUpdate(alice, map[int]library.TrackChanges{
		mine.ID:   {Genre: "Rock"},
		theirs.ID: {Genre: "Rock"},
	})
	require.NoError(t, err)
	// bob's track is silently excluded, not an error
	assert.Equal(t, 1, updated)

	var after db.Track
	require.NoError(t, m.DB().First(&after, theirs.ID).Error)
	assert.NotEqual(t, "Rock", after.Genre)
}

func TestGlobalBulkUpdate(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")
	m.Upload(user, "one.mp3", map[string]string{"title": "One", "artist": "A", "genre": "Pop"})
	m.Upload(user, "two.mp3", map[string]string{"title": "Two", "artist": "B", "genre": "Pop"})

	var tracks []*db.Track
	require.NoError(t, m.DB().Find(&tracks).Error)
	ids := []int{tracks[0].ID, tracks[1].ID}

	updated, err := m.Library().GlobalBulkUpdate(user, ids, "", "Jazz", "Compilation Artist")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	var after []*db.Track
	require.NoError(t, m.DB().Preload("Artist").Find(&after).Error)
	for _, track := range after {
		assert.Equal(t, "Jazz", track.Genre)
		assert.Equal(t, "Compilation Artist", track.Artist.Name)
		// blank album means keep
		assert.NotEmpty(t, track.Album)
	}
}

func TestUploadScenario(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	fields := map[string]string{
		"title": "Yesterday", "artist": "Beatles", "album": "Help", "genre": "Rock",
	}
	summary := m.Upload(user, "yesterday.mp3", fields)
	require.Equal(t, 1, summary.Created)

	var track db.Track
	require.NoError(t, m.DB().Preload("Artist").First(&track).Error)
	assert.Equal(t, "Yesterday", track.Title)
	assert.Equal(t, "Help", track.Album)
	assert.Equal(t, "Rock", track.Genre)
	assert.Equal(t, "Beatles", track.Artist.Name)
	assert.Equal(t, user.ID, track.UserID)
	assert.Contains(t, m.Store().Blobs, track.Locator)

	// uploading the same tagged file again changes nothing
	again := m.Upload(user, "yesterday.mp3", fields)
	assert.Equal(t, 1, again.Skipped)
	assert.Equal(t, 1, m.TrackCount())
}

func TestUploadDotFilenameStaysInUserDir(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	user := m.AddUser("alice")

	summary := m.Upload(user, "..", map[string]string{"title": "Sneaky", "artist": "A"})
	require.Empty(t, summary.Errors)
	require.Equal(t, 1, summary.Created)

	var track db.Track
	require.NoError(t, m.DB().First(&track).Error)
	assert.Equal(t, fmt.Sprintf("mem://%d/unnamed", user.ID), track.Locator)
}

func TestTracksByIDsOwnedOnly(t *testing.T) {
	m := mocklib.New(t)
	defer m.CleanUp()
	alice := m.AddUser("alice")
	bob := m.AddUser("bob")
	m.Upload(alice, "mine.mp3", map[string]string{"title": "Mine", "artist": "A"})
	m.Upload(bob, "theirs.mp3", map[string]string{"title": "Theirs", "artist": "B"})

	var tracks []*db.Track
	require.NoError(t, m.DB().Find(&tracks).Error)
	got, err := m.Library().TracksByIDs(alice, []int{tracks[0].ID, tracks[1].ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mine", got[0].Title)
}
