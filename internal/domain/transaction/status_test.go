package transaction

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusNew, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusNew, StatusProcessing}:       true,
		{StatusNew, StatusCompleted}:        true,
		{StatusNew, StatusFailed}:           true,
		{StatusProcessing, StatusCompleted}: true,
		{StatusProcessing, StatusFailed}:    true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	if CanTransition(Status("pending"), StatusCompleted) {
		t.Error("unknown source status should not transition")
	}
	if CanTransition(StatusNew, Status("done")) {
		t.Error("unknown target status should not be reachable")
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(StatusNew, StatusCompleted); err != nil {
		t.Errorf("ValidateTransition(new, completed) = %v, want nil", err)
	}

	err := ValidateTransition(StatusCompleted, StatusNew)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("ValidateTransition(completed, new) = %v, want ErrInvalidTransition", err)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"new", StatusNew, false},
		{"processing", StatusProcessing, false},
		{"completed", StatusCompleted, false},
		{"failed", StatusFailed, false},
		{"COMPLETED", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusNew.Terminal() || StatusProcessing.Terminal() {
		t.Error("new and processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestCompleteParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  CompleteParams
		wantErr error
	}{
		{"valid", CompleteParams{Amount: decimal.NewFromInt(5000), SenderName: "John Doe"}, nil},
		{"zero amount", CompleteParams{Amount: decimal.Zero, SenderName: "John Doe"}, ErrInvalidAmount},
		{"negative amount", CompleteParams{Amount: decimal.NewFromInt(-1), SenderName: "John Doe"}, ErrInvalidAmount},
		{"blank sender", CompleteParams{Amount: decimal.NewFromInt(10), SenderName: "  "}, ErrMissingSender},
		{"column maximum", CompleteParams{Amount: MaxAmount, SenderName: "John Doe"}, nil},
		{"beyond column", CompleteParams{Amount: MaxAmount.Add(decimal.RequireFromString("0.01")), SenderName: "John Doe"}, ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateTransactionParams_Validate(t *testing.T) {
	placeholder := CreateTransactionParams{ID: "t1", CompanyID: "c1", Status: StatusNew}
	if err := placeholder.Validate(); err != nil {
		t.Errorf("placeholder Validate() = %v, want nil", err)
	}

	completedZero := CreateTransactionParams{ID: "t1", CompanyID: "c1", Status: StatusCompleted, SenderName: "A"}
	if err := completedZero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("completed with zero amount Validate() = %v, want ErrInvalidAmount", err)
	}

	missingCompany := CreateTransactionParams{ID: "t1", Status: StatusNew}
	if err := missingCompany.Validate(); err == nil {
		t.Error("expected error for missing company id")
	}
}

func TestNormalizeHelpers(t *testing.T) {
	if got := NormalizeBank("  "); got != UnknownBank {
		t.Errorf("NormalizeBank(blank) = %q, want %q", got, UnknownBank)
	}
	if got := NormalizeBank(" GTBank "); got != "GTBank" {
		t.Errorf("NormalizeBank = %q, want GTBank", got)
	}
	if NormalizeMessageID("   ") != nil {
		t.Error("NormalizeMessageID(blank) should be nil")
	}
	if id := NormalizeMessageID(" <abc@mail> "); id == nil || *id != "<abc@mail>" {
		t.Errorf("NormalizeMessageID = %v, want <abc@mail>", id)
	}
}
