// Package db provides database helpers and models
//nolint:lll // struct tags get very long and can't be split
package db

import (
	"path"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int `gorm:"primary_key"`
	CreatedAt time.Time
	Name      string `gorm:"not null; unique_index" sql:"default: null"`
	Email     string `gorm:"not null; unique_index" sql:"default: null"`
	Password  string `gorm:"not null" sql:"default: null"`
}

func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// Artist rows are created lazily by uploads and never deleted, even when
// the last track pointing at them goes
type Artist struct {
	ID     int    `gorm:"primary_key"`
	Name   string `gorm:"not null" sql:"default: null"`
	Tracks []*Track
}

type Track struct {
	ID        int `gorm:"primary_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Title     string `sql:"default: null"`
	Album     string `sql:"default: null"`
	Genre     string `sql:"default: null"`
	Filename  string `sql:"default: null"`
	// Locator is whatever the blob store gave us back. a path for the
	// local backend, an object key for s3
	Locator  string `gorm:"not null" sql:"default: null"`
	Artist   *Artist
	ArtistID int `gorm:"not null; index" sql:"default: null; type:int REFERENCES artists(id)"`
	User     *User
	UserID   int `gorm:"not null; index" sql:"default: null; type:int REFERENCES users(id) ON DELETE CASCADE"`
}

func (t *Track) Ext() string {
	longExt := path.Ext(t.Filename)
	if len(longExt) < 1 {
		return ""
	}
	return longExt[1:]
}

type Setting struct {
	Key   string `gorm:"not null; primary_key; auto_increment:false" sql:"default: null"`
	Value string `sql:"default: null"`
}
