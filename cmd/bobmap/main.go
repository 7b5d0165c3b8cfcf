package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/bobmap/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	syncSeconds := flag.Int("sync", 0, "sync interval in seconds (optional, defaults to config)")
	backend := flag.String("storage", "", "storage backend: memory, file, sqlite or redis (optional)")
	token := flag.String("token", "", "log in with this session token and remember it")
	logout := flag.Bool("logout", false, "forget the remembered session")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Storage:    *backend,
		Token:      *token,
		Logout:     *logout,
	}
	if sync := *syncSeconds; sync > 0 {
		opts.SyncEvery = sync
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "bobmap: %v\n", err)
		return 1
	}
	return 0
}
