package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/citabot/citabot/pkg/logging"
)

type fakeSES struct {
	input   *sesv2.SendEmailInput
	sendErr error
}

func (f *fakeSES) SendEmail(_ context.Context, input *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = input
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	ses := &fakeSES{}
	sender := NewSESSender(ses, "noreply@citabot.mx", "Citabot", logging.Default())

	if err := sender.Send(context.Background(), "owner@salon.mx", "Cita confirmada", "detalle"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ses.input == nil {
		t.Fatal("expected a SendEmail call")
	}
	if got := aws.ToString(ses.input.FromEmailAddress); got != "Citabot <noreply@citabot.mx>" {
		t.Errorf("unexpected from address: %s", got)
	}
	if got := ses.input.Destination.ToAddresses; len(got) != 1 || got[0] != "owner@salon.mx" {
		t.Errorf("unexpected destination: %v", got)
	}
}

func TestSESSenderSendFailure(t *testing.T) {
	sender := NewSESSender(&fakeSES{sendErr: errors.New("throttled")}, "noreply@citabot.mx", "", logging.Default())

	if err := sender.Send(context.Background(), "owner@salon.mx", "Cita confirmada", "detalle"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewSESSenderRequiresClient(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil client")
		}
	}()
	NewSESSender(nil, "noreply@citabot.mx", "", logging.Default())
}
