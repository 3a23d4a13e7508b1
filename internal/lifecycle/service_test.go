package lifecycle

import (
	"context"
	"testing"
	"time"
)

func TestServiceStartRejectsSecondInstanceWhileOneIsRunning(t *testing.T) {
	l1 := New(nil, &fakeRepo{})
	if err := ServiceStart(context.Background(), l1); err != nil {
		t.Fatalf("first ServiceStart: %v", err)
	}
	defer ServiceStop(context.Background(), time.Second)

	l2 := New(nil, &fakeRepo{})
	if err := ServiceStart(context.Background(), l2); err == nil {
		t.Fatal("expected a second ServiceStart to fail while the first instance is running")
	}
}

func TestServiceStopRejectsWhenNothingIsRunning(t *testing.T) {
	// Ensure no instance lingers from another test in this package.
	ServiceStop(context.Background(), time.Second)

	if err := ServiceStop(context.Background(), time.Second); err == nil {
		t.Fatal("expected ServiceStop to fail with no running instance")
	}
}

func TestServiceStopAllowsRestartAfterStopping(t *testing.T) {
	l1 := New(nil, &fakeRepo{})
	if err := ServiceStart(context.Background(), l1); err != nil {
		t.Fatalf("ServiceStart: %v", err)
	}
	if err := ServiceStop(context.Background(), time.Second); err != nil {
		t.Fatalf("ServiceStop: %v", err)
	}

	l2 := New(nil, &fakeRepo{})
	if err := ServiceStart(context.Background(), l2); err != nil {
		t.Fatalf("expected ServiceStart to succeed again after a clean stop: %v", err)
	}
	ServiceStop(context.Background(), time.Second)
}
