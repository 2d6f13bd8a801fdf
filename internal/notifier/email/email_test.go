package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/newthinker/stocktrack/internal/core"
	"github.com/newthinker/stocktrack/internal/notifier"
)

func TestEmail_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Email)(nil)
}

func TestEmail_Name(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	if e.Name() != "email" {
		t.Errorf("expected 'email', got %s", e.Name())
	}
}

func TestEmail_FormatAlert(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})

	formatted := e.formatAlert(core.Alert{
		Strategy:  "rvc010",
		Symbol:    "ETHUSDT",
		Direction: core.DirectionUp,
		Price:     2005.25,
		Timeframe: "15m",
		CloseTime: 1700000899999,
		Message:   "[RVC010] UP ETHUSDT @ 2005.2500 TF=15m",
	})

	for _, want := range []string{"ETHUSDT", "UP", "2005.2500", "15m", "2023-11-14 22:28:19"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted message should contain %q", want)
		}
	}
}

func TestEmail_Send(t *testing.T) {
	e := New("smtp.example.com", 587, "user", "pass", "from@example.com", []string{"a@example.com", "b@example.com"})

	var gotAddr string
	var gotMsg string
	var gotAuth smtp.Auth
	e.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotAuth = a
		gotMsg = string(msg)
		return nil
	}

	err := e.Send(context.Background(), core.Alert{Message: "[RVC010] DOWN BTCUSDT @ 1.0000 TF=1h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if gotAuth == nil {
		t.Error("expected auth when username is set")
	}
	if !strings.Contains(gotMsg, "Subject: [RVC010] DOWN BTCUSDT @ 1.0000 TF=1h\r\n") {
		t.Errorf("subject missing from message: %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "To: a@example.com,b@example.com\r\n") {
		t.Errorf("recipients missing from message: %q", gotMsg)
	}
}

func TestEmail_SendError(t *testing.T) {
	e := New("smtp.example.com", 25, "", "", "from@example.com", []string{"to@example.com"})
	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := e.Send(context.Background(), core.Alert{Message: "x"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected send error, got %v", err)
	}
}

func TestEmail_SendCanceled(t *testing.T) {
	e := New("smtp.example.com", 25, "", "", "from@example.com", []string{"to@example.com"})
	e.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("should not dial with canceled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Send(ctx, core.Alert{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
}
