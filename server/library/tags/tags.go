package tags

import (
	"github.com/nicksellen/audiotags"
)

// placeholder values recorded when a file carries no usable tag. the
// upload duplicate check keys off UnknownTitle, so the literals matter
const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
	UnknownGenre  = "Unknown Genre"
)

type TagReader struct{}

func (*TagReader) Read(abspath string) (Parser, error) {
	raw, props, err := audiotags.Read(abspath)
	return &Tagger{raw, props}, err
}

type Tagger struct {
	raw   map[string]string
	props *audiotags.AudioProperties
}

func (t *Tagger) first(keys ...string) string {
	for _, key := range keys {
		if val, ok := t.raw[key]; ok {
			return val
		}
	}
	return ""
}

func (t *Tagger) Title() string  { return t.first("title") }
func (t *Tagger) Artist() string { return t.first("artist") }
func (t *Tagger) Album() string  { return t.first("album") }
func (t *Tagger) Genre() string  { return t.first("genre") }

func (t *Tagger) SomeTitle() string  { return first(UnknownTitle, t.Title()) }
func (t *Tagger) SomeArtist() string { return first(UnknownArtist, t.Artist()) }
func (t *Tagger) SomeAlbum() string  { return first(UnknownAlbum, t.Album()) }
func (t *Tagger) SomeGenre() string  { return first(UnknownGenre, t.Genre()) }

func first(or string, strs ...string) string {
	for _, str := range strs {
		if str != "" {
			return str
		}
	}
	return or
}

type Reader interface {
	Read(abspath string) (Parser, error)
}

type Parser interface {
	Title() string
	Artist() string
	Album() string
	Genre() string

	SomeTitle() string
	SomeArtist() string
	SomeAlbum() string
	SomeGenre() string
}
