package event

import (
	"encoding/json"
	"testing"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		channel Channel
		userID  int64
		want    string
	}{
		{ChannelOrders, 5, "logist.orders.5"},
		{ChannelNotifications, 42, "logist.notifications.42"},
		{ChannelMessages, 1, "logist.messages.1"},
	}
	for _, tt := range tests {
		if got := Subject(tt.channel, tt.userID); got != tt.want {
			t.Errorf("Subject(%s, %d) = %q, want %q", tt.channel, tt.userID, got, tt.want)
		}
	}
}

func TestChangeEventRowDecodesPerChannel(t *testing.T) {
	raw := []byte(`{"event_type":"update","channel":"responses","row":{"id":1,"order_id":30,"status":"accepted"}}`)

	var evt ChangeEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if evt.EventType != EventUpdate || evt.Channel != ChannelResponses {
		t.Fatalf("unexpected envelope: %+v", evt)
	}

	var row ResponseRow
	if err := json.Unmarshal(evt.Row, &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.ID != 1 || row.Status != "accepted" {
		t.Errorf("unexpected row: %+v", row)
	}
}

func TestChannelsCoversEveryFeed(t *testing.T) {
	if len(Channels) != 6 {
		t.Fatalf("expected 6 channels, got %d", len(Channels))
	}
	seen := make(map[Channel]bool, len(Channels))
	for _, ch := range Channels {
		if seen[ch] {
			t.Errorf("channel %s listed twice", ch)
		}
		seen[ch] = true
	}
}
