//nolint:lll,forbidigo
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff"

	"go.senan.xyz/stash"
	"go.senan.xyz/stash/server/blobstore"
	"go.senan.xyz/stash/server/blobstore/localstore"
	"go.senan.xyz/stash/server/blobstore/s3store"
	"go.senan.xyz/stash/server/ctrlbase"
	"go.senan.xyz/stash/server/ctrllib"
	"go.senan.xyz/stash/server/db"
	"go.senan.xyz/stash/server/library"
	"go.senan.xyz/stash/server/library/tags"
)

func main() {
	set := flag.NewFlagSet(stash.Name, flag.ExitOnError)
	confListenAddr := set.String("listen-addr", "0.0.0.0:4343", "listen address (optional)")

	confTLSCert := set.String("tls-cert", "", "path to TLS certificate (optional)")
	confTLSKey := set.String("tls-key", "", "path to TLS private key (optional)")

	confDBPath := set.String("db-path", "stash.db", "path to database (optional)")

	confStorageBackend := set.String("storage-backend", "local", "storage backend for uploaded files. local or s3 (optional)")
	confStoragePath := set.String("storage-path", "stash_files", "path to store uploaded files when using the local backend (optional)")
	confS3Endpoint := set.String("s3-endpoint", "", "s3 endpoint when using the s3 backend")
	confS3AccessKey := set.String("s3-access-key", "", "s3 access key when using the s3 backend")
	confS3SecretKey := set.String("s3-secret-key", "", "s3 secret key when using the s3 backend")
	confS3Bucket := set.String("s3-bucket", "", "s3 bucket when using the s3 backend")
	confS3Secure := set.Bool("s3-secure", true, "use TLS when talking to s3 (optional)")

	confAllowedExts := set.String("allowed-exts", "mp3,wav,flac", "comma separated list of upload file extensions (optional)")

	confProxyPrefix := set.String("proxy-prefix", "", "url path prefix to use if behind proxy. eg '/stash' (optional)")
	confHTTPLog := set.Bool("http-log", true, "http request logging (optional)")

	confShowVersion := set.Bool("version", false, "show stash version")
	_ = set.String("config-path", "", "path to config (optional)")

	if err := ff.Parse(set, os.Args[1:],
		ff.WithConfigFileFlag("config-path"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(stash.NameUpper),
	); err != nil {
		log.Fatalf("error parsing args: %v\n", err)
	}

	if *confShowVersion {
		fmt.Printf("v%s\n", stash.Version)
		os.Exit(0)
	}

	dbc, err := db.New(*confDBPath)
	if err != nil {
		log.Fatalf("error opening database: %v\n", err)
	}
	defer dbc.Close()

	var blobs blobstore.Store
	switch *confStorageBackend {
	case "local":
		blobs, err = localstore.New(*confStoragePath)
		if err != nil {
			log.Fatalf("error creating local store: %v\n", err)
		}
	case "s3":
		blobs, err = s3store.New(*confS3Endpoint, *confS3AccessKey, *confS3SecretKey, *confS3Bucket, *confS3Secure)
		if err != nil {
			log.Fatalf("error creating s3 store: %v\n", err)
		}
	default:
		log.Fatalf("unknown storage backend %q\n", *confStorageBackend)
	}

	var allowedExts []string
	for _, ext := range strings.Split(*confAllowedExts, ",") {
		if ext = strings.TrimSpace(strings.ToLower(ext)); ext != "" {
			allowedExts = append(allowedExts, ext)
		}
	}
	if len(allowedExts) == 0 {
		log.Fatalf("please provide at least one allowed file extension")
	}

	lib := library.New(dbc, blobs, &tags.TagReader{})

	ctrlBase := &ctrlbase.Controller{
		DB:          dbc,
		Library:     lib,
		ProxyPrefix: *confProxyPrefix,
	}
	ctrlLib := ctrllib.New(ctrlBase, allowedExts)

	mux := mux.NewRouter()
	ctrlbase.AddRoutes(ctrlBase, mux, *confHTTPLog)
	ctrllib.AddRoutes(ctrlLib, mux)

	noCleanup := func(_ error) {}

	var g run.Group
	g.Add(func() error {
		log.Printf("starting job 'http'\n")
		server := &http.Server{
			Addr:              *confListenAddr,
			Handler:           mux,
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      80 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if *confTLSCert != "" && *confTLSKey != "" {
			return server.ListenAndServeTLS(*confTLSCert, *confTLSKey)
		}
		return server.ListenAndServe()
	}, noCleanup)

	g.Add(func() error {
		log.Printf("starting job 'session clean'\n")
		ctrlLib.CleanupSessions(10 * time.Minute)
		return nil
	}, noCleanup)

	log.Printf("starting stash v%s at %s", stash.Version, *confListenAddr)
	if err := g.Run(); err != nil {
		log.Panicf("error in job: %v", err)
	}
}
