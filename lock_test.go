package ferry

import (
	"errors"
	"testing"

	ferrors "github.com/zoobzio/ferry/errors"
)

func TestUnlocked_ReleasesAndReacquires(t *testing.T) {
	lock := NewCountingLock(nil)

	called := false
	err := unlocked(lock, ferrors.StageEncode, func() error {
		called = true
		if lock.Releases() != 1 || lock.Acquires() != 0 {
			t.Errorf("inside: releases=%d acquires=%d, want 1/0", lock.Releases(), lock.Acquires())
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unlocked() error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
	if lock.Releases() != 1 || lock.Acquires() != 1 {
		t.Errorf("after: releases=%d acquires=%d, want 1/1", lock.Releases(), lock.Acquires())
	}
}

func TestUnlocked_PropagatesError(t *testing.T) {
	lock := NewCountingLock(nil)
	want := ferrors.InvalidUTF8()

	err := unlocked(lock, ferrors.StageDecode, func() error { return want })

	if err != want {
		t.Errorf("unlocked() = %v, want %v", err, want)
	}
	if lock.Acquires() != 1 {
		t.Errorf("acquires = %d, want 1", lock.Acquires())
	}
}

func TestUnlocked_RecoversPanic(t *testing.T) {
	lock := NewCountingLock(NewMutexLock())
	lock.Acquire()

	err := unlocked(lock, ferrors.StageEncode, func() error {
		panic("boom")
	})

	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("unlocked() = %v, want ErrTypeMismatch", err)
	}
	if err.Error() != "type mismatch: expected convertible value, got panic: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	ce, _ := ferrors.As(err)
	if ce.Stage != ferrors.StageEncode {
		t.Errorf("Stage = %s, want encode", ce.Stage)
	}
	if lock.Acquires() != 2 || lock.Releases() != 1 {
		t.Errorf("acquires=%d releases=%d, want 2/1", lock.Acquires(), lock.Releases())
	}
}

func TestMutexLock(t *testing.T) {
	lock := NewMutexLock()

	if !lock.TryAcquire() {
		t.Fatal("new lock should be free")
	}
	if lock.TryAcquire() {
		t.Fatal("held lock should not be acquirable")
	}
	lock.Release()

	lock.Acquire()
	if lock.TryAcquire() {
		t.Error("Acquire should hold the lock")
	}
	lock.Release()
}

func TestNopLock(_ *testing.T) {
	var l Lock = NopLock{}
	l.Acquire()
	l.Release()
	l.Release()
}
