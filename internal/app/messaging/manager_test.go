package messaging

import (
	"testing"
	"time"
)

func TestManagerAcquireSharesStorePerViewer(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	defer manager.Shutdown()

	first := manager.Acquire("viewer")
	second := manager.Acquire("viewer")
	if first != second {
		t.Fatal("same viewer got two stores")
	}
	other := manager.Acquire("someone-else")
	if other == first {
		t.Fatal("different viewers share a store")
	}
}

func TestManagerReleaseDropsLastReference(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	defer manager.Shutdown()

	manager.Acquire("viewer")
	manager.Acquire("viewer")

	manager.Release("viewer")
	if _, ok := manager.Store("viewer"); !ok {
		t.Fatal("store dropped while a reference remained")
	}
	manager.Release("viewer")
	if _, ok := manager.Store("viewer"); ok {
		t.Fatal("store survived the last release")
	}

	// Releasing an unknown viewer is a no-op.
	manager.Release("viewer")
	manager.Release("never-seen")
}

func TestManagerEnsureDoesNotSkewRefcount(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	defer manager.Shutdown()

	acquired := manager.Acquire("viewer")
	ensured := manager.Ensure("viewer")
	if acquired != ensured {
		t.Fatal("ensure returned a different store")
	}

	manager.Release("viewer")
	if _, ok := manager.Store("viewer"); ok {
		t.Fatal("ensure added a reference; single release should have dropped the store")
	}
}

func TestManagerEnsureCreatesWhenMissing(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	defer manager.Shutdown()

	store := manager.Ensure("restarted-session")
	if store == nil {
		t.Fatal("ensure returned nil")
	}
	if _, ok := manager.Store("restarted-session"); !ok {
		t.Fatal("ensured store not registered")
	}
}

func TestManagerSessionHooks(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	defer manager.Shutdown()

	manager.SessionStarted("viewer")
	if _, ok := manager.Store("viewer"); !ok {
		t.Fatal("sign-in hook did not create a store")
	}
	manager.SessionEnded("viewer")
	if _, ok := manager.Store("viewer"); ok {
		t.Fatal("sign-out hook did not drop the store")
	}
}

func TestManagerShutdownDropsEverything(t *testing.T) {
	manager := &Manager{Gateway: twoConversationFixture(), PollInterval: time.Hour}
	manager.Acquire("a")
	manager.Acquire("b")
	manager.Shutdown()

	if _, ok := manager.Store("a"); ok {
		t.Fatal("store a survived shutdown")
	}
	if _, ok := manager.Store("b"); ok {
		t.Fatal("store b survived shutdown")
	}
}
