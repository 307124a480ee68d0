package ioutil

import (
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/schollz/progressbar/v3"
)

// Progressor is told the bytes transferred so far out of total.
// A total of zero or less means the size is unknown. Every transfer starts with a report of zero bytes.
type Progressor func(curr, total int64)

func NoopProgressor() Progressor {
	return func(curr, total int64) {}
}

// BarProgressor draws a bar on stderr, and starts a new one with every transfer.
func BarProgressor() Progressor {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(curr, total int64) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil || curr == 0 {
			if bar != nil {
				_ = bar.Finish()
			}
			bar = progressbar.DefaultBytes(total)
		}
		_ = bar.Set64(curr)
	}
}

// LogProgressor logs the start and the end of every transfer, and at most once per interval in between.
func LogProgressor(logger log.Logger, msg string, interval time.Duration) Progressor {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(curr, total int64) {
		mu.Lock()
		defer mu.Unlock()
		done := total > 0 && curr >= total
		if curr != 0 && !done && time.Since(last) < interval {
			return
		}
		last = time.Now()
		logger.Info(msg, "current", curr, "total", total)
	}
}

// ProgressReader reports the bytes read through it.
type ProgressReader struct {
	R          io.Reader
	Progressor Progressor
	Total      int64

	read    int64
	started bool
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	if pr.Progressor == nil {
		return pr.R.Read(p)
	}
	if !pr.started {
		pr.started = true
		pr.Progressor(0, pr.Total)
	}
	n, err := pr.R.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.Progressor(pr.read, pr.Total)
	}
	return n, err
}
