//go:build !js

// Command wspoll is an interactive client polling a single channel.
//
// Every line read from stdin is sent as a binary message and every
// received message is printed. The lines /revive, /state and /quit
// reconnect, print the state and exit.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"nhooyr.io/pollws"
)

func main() {
	log.SetFlags(0)

	err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
}

type config struct {
	url      string
	interval time.Duration
	proxy    string
	insecure bool
	verbose  bool
}

func parseFlags(args []string) (config, error) {
	var cfg config

	fs := pflag.NewFlagSet("wspoll", pflag.ContinueOnError)
	fs.StringVarP(&cfg.url, "url", "u", "", "ws:// or wss:// URL to connect to")
	fs.DurationVarP(&cfg.interval, "interval", "i", time.Millisecond*10, "time between two polls")
	fs.StringVar(&cfg.proxy, "proxy", "", "SOCKS5 proxy address")
	fs.BoolVar(&cfg.insecure, "insecure", false, "skip verification of the server certificate")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log absorbed failures")

	err := fs.Parse(args)
	if err != nil {
		return config{}, err
	}
	if cfg.url == "" && fs.NArg() > 0 {
		cfg.url = fs.Arg(0)
	}
	if cfg.url == "" {
		return config{}, errors.New("please provide a URL with --url")
	}
	if cfg.interval <= 0 {
		return config{}, fmt.Errorf("interval must be positive: %v", cfg.interval)
	}
	return cfg, nil
}

func (cfg config) options() *pollws.Options {
	opts := &pollws.Options{
		ProxyAddr: cfg.proxy,
	}
	if cfg.insecure {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	if cfg.verbose {
		opts.Logf = log.Printf
	}
	return opts
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := pollws.OpenContext(ctx, cfg.url, cfg.options())
	if err != nil {
		return err
	}
	defer c.Close()

	s := &session{
		c:     c,
		out:   stdout,
		state: c.State(),
	}
	fmt.Fprintf(stdout, "%v: %v\n", c.URL(), s.state)

	lines := make(chan string)
	go scanLines(ctx, stdin, lines)

	l := rate.NewLimiter(rate.Every(cfg.interval), 1)
	for {
		err = l.Wait(ctx)
		if err != nil {
			return nil
		}

		select {
		case line, ok := <-lines:
			if !ok || !s.handle(ctx, line) {
				return nil
			}
		default:
		}

		s.poll()
	}
}

// scanLines sends every line of r on lines and closes it at EOF.
func scanLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}

// session prints what happens on c. It is only used by one goroutine.
type session struct {
	c     *pollws.Channel
	out   io.Writer
	state pollws.State
}

// handle executes line and reports whether to continue.
func (s *session) handle(ctx context.Context, line string) bool {
	switch line {
	case "/quit":
		s.c.Close()
		return false
	case "/state":
		fmt.Fprintf(s.out, "state: %v\n", s.c.State())
	case "/revive":
		ok := s.c.ReviveContext(ctx)
		fmt.Fprintf(s.out, "revive: %v, state: %v\n", ok, s.c.State())
	default:
		if !s.c.Write([]byte(line)) {
			fmt.Fprintf(s.out, "not sent, state: %v\n", s.c.State())
		}
	}
	return true
}

// poll reads at most one message and reports state changes.
func (s *session) poll() {
	p, ok := s.c.Read()
	if ok {
		fmt.Fprintf(s.out, "< %s\n", p)
	}

	st := s.c.State()
	if st != s.state {
		fmt.Fprintf(s.out, "state: %v\n", st)
		s.state = st
	}
}
