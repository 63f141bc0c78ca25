// Command bpmdemo exercises a Pool against a real file: allocate a page,
// write to it, flush, and fetch it back, printing the page's first bytes.
// Errors are logged; a final log line reports the settings used.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tuannm99/bufpool/internal/bpm"
	"github.com/tuannm99/bufpool/internal/disk"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory for the backing page file")
	numFrames := flag.Int("frames", 16, "number of buffer pool frames")
	k := flag.Int("lru-k", 2, "k parameter for the LRU-K replacer")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Error("create data dir", "err", err)
		os.Exit(1)
	}

	fm, err := disk.NewFileManager(filepath.Join(*dataDir, "bufpool.db"))
	if err != nil {
		log.Error("open file manager", "err", err)
		os.Exit(1)
	}
	defer fm.Close()

	pool := bpm.NewPool(bpm.Config{NumFrames: *numFrames, K: *k}, fm, log)
	defer pool.Close()

	pageID := pool.NewPageID()
	wg, err := pool.FetchPageWrite(pageID)
	if err != nil {
		log.Error("fetch page write", "err", err)
		os.Exit(1)
	}
	copy(wg.GetDataMut(), []byte("bpmdemo"))
	wg.Drop()

	if err := pool.FlushPage(pageID); err != nil {
		log.Error("flush page", "err", err)
		os.Exit(1)
	}

	rg, err := pool.FetchPageRead(pageID)
	if err != nil {
		log.Error("fetch page read", "err", err)
		os.Exit(1)
	}
	fmt.Printf("page %d: %q\n", pageID, rg.GetData()[:7])
	rg.Drop()

	log.Info("bpmdemo finished", "data_dir", *dataDir, "frames", *numFrames, "k", *k)
}
