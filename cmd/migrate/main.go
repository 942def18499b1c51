// Package main applies the weapons and chat_messages schema migrations.
//
// Usage:
//
//	migrate [flags] up|down|version
//	migrate [flags] force <version>
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/config"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	dir := flag.String("dir", "migrations", "directory holding the *.sql migrations")
	steps := flag.Int("steps", 0, "number of steps for up/down (0 = all)")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	abs, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatalf("resolving %s: %v", *dir, err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), cfg.Database.DSN())
	if err != nil {
		log.Fatalf("creating migrator: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "force":
		if flag.NArg() != 2 {
			log.Fatalf("usage: migrate force <version>")
		}
		v, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil {
			log.Fatalf("invalid version %q: %v", flag.Arg(1), convErr)
		}
		err = m.Force(v)
	case "version":
	default:
		log.Fatalf("unknown command %q: must be up, down, version or force", command)
	}

	noChange := errors.Is(err, migrate.ErrNoChange)
	if err != nil && !noChange {
		log.Fatalf("%s failed: %v", command, err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		fmt.Fprintf(os.Stdout, "%s: no migrations applied [%s]\n", command, time.Since(start))
	case verr != nil:
		log.Fatalf("reading version: %v", verr)
	case noChange:
		fmt.Fprintf(os.Stdout, "%s: no changes, version=%d dirty=%v [%s]\n", command, version, dirty, time.Since(start))
	default:
		fmt.Fprintf(os.Stdout, "%s: version=%d dirty=%v [%s]\n", command, version, dirty, time.Since(start))
	}
}
