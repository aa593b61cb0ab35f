package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/testyard/internal/notify"
)

type mockSession struct {
	sent []*discordgo.MessageSend
	errs []error
	hits int
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.hits++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.sent = append(m.sent, data)
	return &discordgo.Message{ID: "m1", ChannelID: channelID}, nil
}

func tooMany() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "1"}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestSend(t *testing.T) {
	sess := &mockSession{}
	s, err := New(Opts{ChannelID: "42", Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	msg := notify.FormatImport(notify.Import{Kind: "repository", Project: "alpha", Summary: "ok"})
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sess.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sess.sent))
	}
	got := sess.sent[0]
	if got.Content != msg.Text {
		t.Errorf("content = %q, want %q", got.Content, msg.Text)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Color != 0x36a64f {
		t.Errorf("embeds = %+v", got.Embeds)
	}
}

func TestSend_RetriesOn429(t *testing.T) {
	sess := &mockSession{errs: []error{tooMany(), tooMany()}}
	s, _ := New(Opts{ChannelID: "42", Session: sess})
	s.baseBackoff = time.Millisecond
	if err := s.Send(context.Background(), notify.Message{Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sess.hits != 3 {
		t.Errorf("hits = %d, want 3", sess.hits)
	}
}

func TestSend_GivesUp(t *testing.T) {
	sess := &mockSession{errs: []error{tooMany(), tooMany(), tooMany(), tooMany(), tooMany()}}
	s, _ := New(Opts{ChannelID: "42", Session: sess})
	s.baseBackoff = time.Millisecond
	if err := s.Send(context.Background(), notify.Message{Text: "x"}); err == nil {
		t.Fatal("expected error after retries")
	}
	if sess.hits != maxRetries+1 {
		t.Errorf("hits = %d, want %d", sess.hits, maxRetries+1)
	}
}

func TestSend_NonRetryable(t *testing.T) {
	sess := &mockSession{errs: []error{errors.New("missing access")}}
	s, _ := New(Opts{ChannelID: "42", Session: sess})
	if err := s.Send(context.Background(), notify.Message{Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if sess.hits != 1 {
		t.Errorf("hits = %d, want 1", sess.hits)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"d00000", 0xd00000},
		{"#FFFFFF", 0xffffff},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
