// Command streamload opens many concurrent subscriptions to the decision
// stream and reports how many plans and heartbeats each side saw.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	decisions   atomic.Int64
	heartbeats  atomic.Int64
}

func (c *counters) fields(elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int64("connected", c.connected.Load()),
		zap.Int64("connect_errs", c.connectErrs.Load()),
		zap.Int64("stream_errs", c.streamErrs.Load()),
		zap.Int64("decisions", c.decisions.Load()),
		zap.Int64("heartbeats", c.heartbeats.Load()),
		zap.Duration("elapsed", elapsed.Truncate(time.Second)),
	}
}

// consume reads one event stream until it ends and tallies what it sees.
func consume(r io.Reader, c *counters) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "event: decision":
			c.decisions.Add(1)
		case strings.HasPrefix(line, ":"):
			c.heartbeats.Add(1)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		connsPerSec  float64
		after        uint64
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/decisions/stream", "decision stream URL")
	flag.IntVar(&connections, "conns", 500, "number of concurrent subscriptions")
	flag.DurationVar(&testDuration, "dur", time.Minute, "test duration (0 runs until interrupted)")
	flag.Float64Var(&connsPerSec, "rate", 500, "new connections per second during ramp-up")
	flag.Uint64Var(&after, "after", 0, "replay journal entries after this index")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if connections <= 0 || connsPerSec <= 0 {
		logger.Fatal("conns and rate must be positive", zap.Int("conns", connections), zap.Float64("rate", connsPerSec))
	}
	if after > 0 {
		targetURL = fmt.Sprintf("%s?after=%d", targetURL, after)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	logger.Info("starting stream load",
		zap.String("url", targetURL),
		zap.Int("conns", connections),
		zap.Duration("duration", testDuration),
		zap.Float64("rate", connsPerSec),
	)

	var (
		c       counters
		wg      sync.WaitGroup
		start   = time.Now()
		limiter = rate.NewLimiter(rate.Limit(connsPerSec), 1)
	)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status", c.fields(time.Since(start))...)
			}
		}
	}()

	for i := 0; i < connections; i++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
			if err != nil {
				c.connectErrs.Add(1)
				return
			}
			req.Header.Set("Accept", "text/event-stream")

			resp, err := client.Do(req)
			if err != nil {
				c.connectErrs.Add(1)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				c.connectErrs.Add(1)
				return
			}

			c.connected.Add(1)
			if err := consume(resp.Body, &c); err != nil && ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
		}()
	}

	wg.Wait()
	logger.Info("done", c.fields(time.Since(start))...)
}
