package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerTicksAndStops(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time, 8)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(_ context.Context, at time.Time) error {
			ticks <- at
			return nil
		})
	}()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ticked")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	s := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticked := make(chan struct{}, 1)
	go func() {
		_ = s.Run(ctx, func(context.Context, time.Time) error {
			ticked <- struct{}{}
			return nil
		})
	}()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("startup refresh never fired despite RunOnStart")
	}
}

func TestSchedulerSurvivesTickErrors(t *testing.T) {
	s := New(Options{Interval: 15 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := make(chan int, 16)
	calls := 0
	go func() {
		_ = s.Run(ctx, func(context.Context, time.Time) error {
			calls++
			count <- calls
			return errors.New("refresh exploded")
		})
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-count:
			if n >= 2 {
				return
			}
		case <-deadline:
			t.Fatal("scheduler stopped after a tick error")
		}
	}
}

func TestNextTickAlignment(t *testing.T) {
	s := New(Options{Interval: 6 * time.Hour, AlignToBucket: true}, zerolog.Nop())

	now := time.Date(2026, 8, 26, 10, 15, 0, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextTick = %s, want %s", next, want)
	}

	unaligned := New(Options{Interval: 6 * time.Hour}, zerolog.Nop())
	if got := unaligned.nextTick(now); !got.Equal(now.Add(6 * time.Hour)) {
		t.Fatalf("unaligned nextTick = %s, want now+interval", got)
	}
}
