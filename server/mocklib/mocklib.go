// Package mocklib provides helpers for testing the library core without
// a real tag parser or storage backend
package mocklib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"go.senan.xyz/stash/server/db"
	"go.senan.xyz/stash/server/library"
	"go.senan.xyz/stash/server/library/tags"
)

type MockLib struct {
	t     testing.TB
	db    *db.DB
	store *MemStore
	lib   *library.Library
}

func New(t testing.TB) *MockLib {
	dbc, err := db.NewMock()
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	dbc.LogMode(false)
	store := NewMemStore()
	return &MockLib{
		t:     t,
		db:    dbc,
		store: store,
		lib:   library.New(dbc, store, TagReader{}),
	}
}

func (m *MockLib) DB() *db.DB                { return m.db }
func (m *MockLib) Store() *MemStore          { return m.store }
func (m *MockLib) Library() *library.Library { return m.lib }

func (m *MockLib) CleanUp() {
	if err := m.db.Close(); err != nil {
		m.t.Fatalf("close db: %v", err)
	}
}

func (m *MockLib) AddUser(name string) *db.User {
	user := db.User{Name: name, Email: name + "@example.com"}
	if err := user.SetPassword("pw123"); err != nil {
		m.t.Fatalf("set password: %v", err)
	}
	if err := m.db.Create(&user).Error; err != nil {
		m.t.Fatalf("create user: %v", err)
	}
	return &user
}

// Upload pushes one payload through the real pipeline. the given fields
// become the file's tags, see TagReader
func (m *MockLib) Upload(user *db.User, filename string, fields map[string]string) *library.UploadSummary {
	return m.lib.UploadAll(user, []library.Upload{
		{Filename: filename, Data: strings.NewReader(Body(fields))},
	})
}

func (m *MockLib) TrackCount() int {
	var count int
	if err := m.db.Model(&db.Track{}).Count(&count).Error; err != nil {
		m.t.Fatalf("count tracks: %v", err)
	}
	return count
}

func (m *MockLib) ArtistCount() int {
	var count int
	if err := m.db.Model(&db.Artist{}).Count(&count).Error; err != nil {
		m.t.Fatalf("count artists: %v", err)
	}
	return count
}

// Body renders tag fields in the format TagReader parses back out
func Body(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&builder, "%s=%s\n", k, fields[k])
	}
	return builder.String()
}

// MemStore keeps blobs in a map, locators look like "mem://<key>"
type MemStore struct {
	Blobs      map[string][]byte
	FailPut    bool
	FailDelete bool
}

func NewMemStore() *MemStore {
	return &MemStore{Blobs: map[string][]byte{}}
}

func (s *MemStore) Put(key string, r io.Reader) (string, error) {
	if s.FailPut {
		return "", fmt.Errorf("mem store: put refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	locator := "mem://" + key
	s.Blobs[locator] = data
	return locator, nil
}

func (s *MemStore) Delete(locator string) error {
	if s.FailDelete {
		return fmt.Errorf("mem store: delete refused")
	}
	if _, ok := s.Blobs[locator]; !ok {
		return fmt.Errorf("mem store: no blob %q", locator)
	}
	delete(s.Blobs, locator)
	return nil
}

// TagReader reads "field=value" lines from the staged file itself, so a
// test controls tags through the upload payload alone. an empty payload
// means an untagged file
type TagReader struct{}

func (TagReader) Read(abspath string) (tags.Parser, error) {
	f, err := os.Open(abspath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	parsed := &Tags{fields: map[string]string{}}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if k, v, ok := strings.Cut(scanner.Text(), "="); ok {
			parsed.fields[k] = v
		}
	}
	return parsed, scanner.Err()
}

type Tags struct {
	fields map[string]string
}

func (t *Tags) Title() string  { return t.fields["title"] }
func (t *Tags) Artist() string { return t.fields["artist"] }
func (t *Tags) Album() string  { return t.fields["album"] }
func (t *Tags) Genre() string  { return t.fields["genre"] }

func (t *Tags) SomeTitle() string  { return some(t.Title(), tags.UnknownTitle) }
func (t *Tags) SomeArtist() string { return some(t.Artist(), tags.UnknownArtist) }
func (t *Tags) SomeAlbum() string  { return some(t.Album(), tags.UnknownAlbum) }
func (t *Tags) SomeGenre() string  { return some(t.Genre(), tags.UnknownGenre) }

func some(val, or string) string {
	if val != "" {
		return val
	}
	return or
}

var (
	_ tags.Reader = TagReader{}
	_ tags.Parser = (*Tags)(nil)
)
