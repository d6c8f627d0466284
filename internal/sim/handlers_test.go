package sim

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/atmx/ddp-sim/internal/store"
	"github.com/atmx/ddp-sim/internal/validation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
		kind string
	}{
		{fmt.Errorf("%w: abc", store.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: id 9", validation.ErrUnknownParticipant), http.StatusNotFound, "unknown_participant"},
		{fmt.Errorf("%w: bad", validation.ErrConfig), http.StatusBadRequest, "config"},
		{fmt.Errorf("%w: zero", validation.ErrInvalidAmount), http.StatusBadRequest, "invalid_amount"},
		{fmt.Errorf("%w: short", validation.ErrInsufficientBalance), http.StatusConflict, "insufficient_balance"},
		{fmt.Errorf("%w: empty", validation.ErrDivisionByZero), http.StatusConflict, "division_by_zero"},
		{fmt.Errorf("%w: 40%%", validation.ErrPriceImpactExceeded), http.StatusConflict, "price_impact"},
		// Removing liquidity with no supply carries both kinds; the request
		// error wins.
		{fmt.Errorf("%w: %w", validation.ErrInvalidAmount, validation.ErrDivisionByZero), http.StatusBadRequest, "invalid_amount"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
		if got := errorKind(tt.err); got != tt.kind {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.kind)
		}
	}
}
