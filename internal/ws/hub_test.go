package ws

import "testing"

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub()

	hub.AddClient(1, nil, ConnInfo{UserID: 1})
	if len(hub.users) != 1 {
		t.Fatalf("expected personal channel to be created")
	}

	hub.RemoveClient(1, nil)
	if len(hub.users) != 0 {
		t.Fatalf("expected personal channel to be removed")
	}
}

func TestHubRemoveClientLeavesGroupChannels(t *testing.T) {
	hub := NewHub()

	hub.AddClient(1, nil, ConnInfo{UserID: 1})
	hub.JoinGroupChannel(4, nil, 1)
	hub.JoinGroupChannel(5, nil, 1)
	if len(hub.groups) != 2 {
		t.Fatalf("expected two group channels")
	}

	hub.RemoveClient(1, nil)
	if len(hub.groups) != 0 {
		t.Fatalf("expected group channels to be removed with the last member")
	}
}
