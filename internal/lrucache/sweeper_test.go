package lrucache

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_RemovesExpiredOnTick(t *testing.T) {
	c, _ := New(10, nil)
	c.Put("temp", "v", 10*time.Millisecond)
	sw := NewSweeper(c, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(ctx)
	defer sw.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Size() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweeper did not remove expired entry in time")
}

func TestSweeper_StopWakesPromptly(t *testing.T) {
	c, _ := New(10, nil)
	sw := NewSweeper(c, time.Hour, nil)
	go sw.Run(context.Background())

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
}
