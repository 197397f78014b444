package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"flat_bot/internal/storage"
	"flat_bot/migrations"
)

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/flatbot.db"), "path to sqlite database")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-db path] <command>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  up                Migrate to the latest version")
		fmt.Fprintln(os.Stderr, "  up-one            Migrate one version up")
		fmt.Fprintln(os.Stderr, "  down              Roll back one version")
		fmt.Fprintln(os.Stderr, "  status            Show migration status")
		fmt.Fprintln(os.Stderr, "  version           Show current version")
		fmt.Fprintln(os.Stderr, "  reset             Roll back all migrations")
		fmt.Fprintln(os.Stderr, "  import-json <dir>  Copy seen.json and subscribers.json into the database")
		os.Exit(1)
	}

	cmd := args[0]
	if cmd == "import-json" {
		if len(args) != 2 {
			log.Fatal("usage: migrate [-db path] import-json <dir>")
		}
		seen, subs, err := importJSON(context.Background(), args[1], *dbPath)
		if err != nil {
			log.Fatalf("import-json: %v", err)
		}
		log.Printf("imported %d seen listings and %d subscribers", seen, subs)
		return
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(); err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case "up":
		err = goose.Up(db, migrations.Dir)
	case "up-one":
		err = goose.UpByOne(db, migrations.Dir)
	case "down":
		err = goose.Down(db, migrations.Dir)
	case "status":
		err = goose.Status(db, migrations.Dir)
	case "version":
		err = goose.Version(db, migrations.Dir)
	case "reset":
		err = goose.Reset(db, migrations.Dir)
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// importJSON merges the file backend's data into the SQLite database,
// keeping whatever the database already holds.
func importJSON(ctx context.Context, dir, dbPath string) (int, int, error) {
	src, err := storage.NewJSONFiles(dir)
	if err != nil {
		return 0, 0, err
	}
	dst, err := storage.NewSQLite(dbPath)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = dst.Close() }()

	seen, err := src.LoadSeen(ctx)
	if err != nil {
		return 0, 0, err
	}
	existing, err := dst.LoadSeen(ctx)
	if err != nil {
		return 0, 0, err
	}
	merged := existing.Clone()
	for id := range seen {
		merged.Add(id)
	}
	if err := dst.SaveSeen(ctx, merged); err != nil {
		return 0, 0, err
	}

	subs, err := src.ListSubscribers(ctx)
	if err != nil {
		return 0, 0, err
	}
	added := 0
	for _, id := range subs {
		ok, err := dst.AddSubscriber(ctx, id)
		if err != nil {
			return 0, 0, err
		}
		if ok {
			added++
		}
	}
	return len(seen), added, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
