package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mkessler/catalog-crawler/internal/browser"
	"github.com/mkessler/catalog-crawler/internal/logging"
	"github.com/mkessler/catalog-crawler/internal/proxy"
)

type checkResult struct {
	server  string
	ok      bool
	latency time.Duration
	size    int
	err     error
}

func main() {
	var (
		proxyFile = flag.String("file", "", "Path to a newline-delimited proxy list")
		checkURL  = flag.String("url", "https://www.example.com", "URL to load through each proxy")
		timeout   = flag.Duration("timeout", 20*time.Second, "Per-proxy page load timeout")
		csvOut    = flag.String("csv", "", "Write a CSV report to this path")
		goodOut   = flag.String("good", "", "Write working proxy servers to this path")
		headless  = flag.Bool("headless", true, "Run the browser headless")
		verbose   = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	logger := logging.New("info", "text", *verbose)

	var entries []string
	if *proxyFile != "" {
		fileEntries, err := proxy.LoadEntriesFromFile(*proxyFile)
		if err != nil {
			log.Fatalf("Failed to read proxy file: %v", err)
		}
		entries = append(entries, fileEntries...)
	}
	entries = append(entries, flag.Args()...)

	pool := proxy.NewPool(entries)
	if pool.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No proxies to test; pass -file or proxy entries as arguments")
		os.Exit(2)
	}
	logger.Info("testing proxies", "candidates", pool.Len(), "url", *checkURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	opts := browser.DefaultOptions()
	opts.Headless = *headless
	b, err := browser.New(opts)
	if err != nil {
		log.Fatalf("Failed to initialize browser: %v", err)
	}
	defer b.Close()

	results := make([]checkResult, 0, pool.Len())
	working := 0
	for i, ep := range pool.Endpoints() {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		content, err := b.Load(ctx, *checkURL, ep, *timeout)
		res := checkResult{
			server:  ep.Server(),
			ok:      err == nil,
			latency: time.Since(start),
			size:    len(content),
			err:     err,
		}
		results = append(results, res)

		if res.ok {
			working++
			fmt.Printf("[%d/%d] OK    %-40s %6dms %7d bytes\n",
				i+1, pool.Len(), res.server, res.latency.Milliseconds(), res.size)
		} else {
			fmt.Printf("[%d/%d] FAIL  %-40s %6dms %s\n",
				i+1, pool.Len(), res.server, res.latency.Milliseconds(), shortError(res.err))
		}
	}

	fmt.Printf("\n%d/%d proxies working\n", working, len(results))

	if *csvOut != "" {
		if err := writeCSV(*csvOut, results); err != nil {
			log.Fatalf("Failed to write CSV report: %v", err)
		}
		logger.Info("wrote report", "path", *csvOut)
	}
	if *goodOut != "" {
		if err := writeGood(*goodOut, results); err != nil {
			log.Fatalf("Failed to write working proxy list: %v", err)
		}
		logger.Info("wrote working proxies", "path", *goodOut, "count", working)
	}

	if working == 0 {
		os.Exit(1)
	}
}

func writeCSV(path string, results []checkResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"proxy", "ok", "latency_ms", "bytes", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		errMsg := ""
		if r.err != nil {
			errMsg = r.err.Error()
		}
		record := []string{
			r.server,
			strconv.FormatBool(r.ok),
			strconv.FormatInt(r.latency.Milliseconds(), 10),
			strconv.Itoa(r.size),
			errMsg,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeGood(path string, results []checkResult) error {
	var b strings.Builder
	for _, r := range results {
		if r.ok {
			b.WriteString(r.server)
			b.WriteByte('\n')
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func shortError(err error) string {
	msg := err.Error()
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	if len(msg) > 80 {
		msg = msg[:80]
	}
	return msg
}
