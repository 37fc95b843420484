package sdkerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageForms(t *testing.T) {
	cause := errors.New("socket closed")

	tests := []struct {
		err  *Error
		want string
	}{
		{New(KindUnknownUser, "no registered user u1"), "unknown_user: no registered user u1"},
		{Wrap(KindOTPBusyOrInvalid, cause), "otp_busy_or_invalid: socket closed"},
		{&Error{Kind: KindPinMismatch, Msg: "PINs differ", Err: cause}, "pin_mismatch: PINs differ: socket closed"},
		{&Error{Kind: KindNotInitialized}, "not_initialized"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := Wrap(KindAccountDeregistered, errors.New("code 9003"))
	wrapped := fmt.Errorf("handling transaction: %w", inner)

	if KindOf(wrapped) != KindAccountDeregistered {
		t.Errorf("Expected kind through the chain, got %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("Expected unknown kind for foreign errors")
	}
	if !Is(wrapped, KindAccountDeregistered) {
		t.Error("Expected Is to match through the chain")
	}
	if Is(nil, KindUnknown) {
		t.Error("Expected nil to match nothing")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root")
	if !errors.Is(Wrap(KindPolicyViolation, cause), cause) {
		t.Error("Expected wrapped cause to be reachable via errors.Is")
	}
}

func TestFromCode(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{CodeActionCancelled, KindRegistrationCancelled},
		{CodeStatelessNotAllowed, KindStatelessNotSupported},
		{CodeUserDeregistered, KindAccountDeregistered},
		{CodePinPolicyViolation, KindPolicyViolation},
		{CodeOTPBusy, KindOTPBusyOrInvalid},
		{42, KindUnknown},
	}
	for _, tt := range tests {
		got := FromCode(tt.code, errors.New("x"))
		if got.Kind != tt.want {
			t.Errorf("FromCode(%d): expected %v, got %v", tt.code, tt.want, got.Kind)
		}
		if got.Code != tt.code {
			t.Errorf("FromCode(%d): expected code preserved, got %d", tt.code, got.Code)
		}
	}
}
