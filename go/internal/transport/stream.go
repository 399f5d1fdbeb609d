package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var ErrStreamClosed = errors.New("event stream closed by server")

// DefaultStreamReconnect is the fixed delay between stream reconnect attempts.
const DefaultStreamReconnect = 5 * time.Second

const maxEventSize = 4 << 20

// StreamHandlers receive the lifecycle of the event stream.
type StreamHandlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnError   func(err error)
}

// Stream is a server-sent event subscription that reconnects forever with a
// fixed delay. Only one connection exists at a time: each attempt's request
// is cancelled before the next one is made.
type Stream struct {
	url       string
	client    *http.Client
	clock     clockwork.Clock
	reconnect time.Duration
	headers   map[string]string
}

func NewStream(url string, clock clockwork.Clock, reconnect time.Duration) *Stream {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if reconnect <= 0 {
		reconnect = DefaultStreamReconnect
	}
	return &Stream{
		url:       url,
		client:    &http.Client{},
		clock:     clock,
		reconnect: reconnect,
		headers:   make(map[string]string),
	}
}

func (s *Stream) SetHeader(key, value string) {
	s.headers[key] = value
}

func (s *Stream) URL() string {
	return s.url
}

// Run connects and dispatches messages until ctx is cancelled.
func (s *Stream) Run(ctx context.Context, h StreamHandlers) error {
	for {
		err := s.connect(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = ErrStreamClosed
		}

		log.Warn().Err(err).Str("url", s.url).Dur("retry_in", s.reconnect).Msg("event stream error")
		if h.OnError != nil {
			h.OnError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.reconnect):
		}
	}
}

func (s *Stream) connect(parent context.Context, h StreamHandlers) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status code: %d", resp.StatusCode)
	}

	log.Info().Str("url", s.url).Msg("event stream connected")
	if h.OnOpen != nil {
		h.OnOpen()
	}

	return readEvents(resp.Body, func(name string, data []byte) {
		if name != "" && name != "message" {
			log.Debug().Str("event", name).Msg("ignoring named stream event")
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	})
}

// readEvents parses the text/event-stream framing and calls dispatch once per
// complete event. It returns nil on EOF.
func readEvents(r io.Reader, dispatch func(name string, data []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var (
		name string
		data bytes.Buffer
		has  bool
	)
	flush := func() {
		if has {
			dispatch(name, bytes.Clone(data.Bytes()))
		}
		name, has = "", false
		data.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if has {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			has = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}
