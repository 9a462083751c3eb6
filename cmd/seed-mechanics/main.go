// README: Loads mechanic fixtures into the MongoDB geo index and ensures its indexes.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"flag"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"roadside/internal/infra"
	"roadside/internal/modules/discovery"
)

//go:embed mechanics.json
var defaultFixture []byte

func main() {
	uri := flag.String("mongo-uri", envOrDefault("RSA_MONGO_URI", "mongodb://localhost:27017"), "MongoDB URI")
	dbName := flag.String("db", envOrDefault("RSA_MONGO_DATABASE", "roadside"), "MongoDB database")
	file := flag.String("file", "", "JSON fixture file (defaults to the embedded sample set)")
	flag.Parse()

	log := infra.NewLogger(envOrDefault("RSA_LOG_LEVEL", "info"), "text")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var src io.Reader = bytes.NewReader(defaultFixture)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("open fixture: %v", err)
		}
		defer f.Close()
		src = f
	}
	mechanics, err := discovery.LoadFixtures(src)
	if err != nil {
		log.Fatalf("fixtures: %v", err)
	}

	client, err := infra.NewMongo(ctx, *uri)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	store := discovery.NewStore(client.Database(*dbName))
	if err := store.EnsureIndexes(ctx); err != nil {
		log.Fatalf("indexes: %v", err)
	}

	for i := range mechanics {
		m := &mechanics[i]
		if err := store.Upsert(ctx, m); err != nil {
			log.Fatalf("upsert %s: %v", m.ID, err)
		}
		log.WithFields(logrus.Fields{"id": m.ID, "approved": m.Approved}).Info("seeded mechanic")
	}
	log.WithField("count", len(mechanics)).Info("seed complete")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
