package transport

import (
	"sync"

	"github.com/mcdev12/bzdash/go/internal/events"
)

const (
	LiveText         = "Live"
	ReconnectingText = "Reconnecting…"
	ConnectingText   = "Connecting…"
)

// LiveStatus is the connection indicator shown to the user.
type LiveStatus struct {
	Live   bool   `json:"live"`
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
	Push   bool   `json:"push"`
}

// LiveIndicator folds the health signals of every channel into one status.
// The stream's own open and error signals always apply; push connect and
// disconnect only move the indicator while the stream is not live.
type LiveIndicator struct {
	bus *events.Bus

	mu     sync.Mutex
	status LiveStatus
}

func NewLiveIndicator(bus *events.Bus) *LiveIndicator {
	return &LiveIndicator{
		bus:    bus,
		status: LiveStatus{Text: ConnectingText},
	}
}

func (l *LiveIndicator) Status() LiveStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *LiveIndicator) StreamOpen() {
	l.update(func(s *LiveStatus) {
		s.Stream = true
		s.Live, s.Text = true, LiveText
	})
}

func (l *LiveIndicator) StreamError() {
	l.update(func(s *LiveStatus) {
		s.Stream = false
		s.Live, s.Text = false, ReconnectingText
	})
}

func (l *LiveIndicator) PushConnected() {
	l.update(func(s *LiveStatus) {
		s.Push = true
		if !s.Stream {
			s.Live, s.Text = true, LiveText
		}
	})
}

func (l *LiveIndicator) PushDisconnected() {
	l.update(func(s *LiveStatus) {
		s.Push = false
		if !s.Stream {
			s.Live, s.Text = false, ReconnectingText
		}
	})
}

// PollSucceeded marks the indicator live; a REST answer proves the backend is reachable.
func (l *LiveIndicator) PollSucceeded() {
	l.update(func(s *LiveStatus) {
		s.Live, s.Text = true, LiveText
	})
}

func (l *LiveIndicator) update(fn func(s *LiveStatus)) {
	l.mu.Lock()
	prev := l.status
	fn(&l.status)
	next := l.status
	l.mu.Unlock()

	if next != prev && l.bus != nil {
		l.bus.Publish(events.TopicLiveStatus, next)
	}
}
