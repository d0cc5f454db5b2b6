package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad latitude %v", 91), fiber.StatusBadRequest},
		{StateConflict("cannot pause"), fiber.StatusConflict},
		{Permission("not an admin"), fiber.StatusForbidden},
		{NotFound("activity not found"), fiber.StatusNotFound},
		{External("geocoder", errors.New("timeout")), fiber.StatusServiceUnavailable},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("complete activity: %w", StateConflict("already completed"))
	if !Is(err, KindStateConflict) {
		t.Fatalf("expected state conflict through wrap")
	}
	if Is(nil, KindStateConflict) {
		t.Fatalf("nil is never classified")
	}
}

func TestNotFoundIfNoRows(t *testing.T) {
	if !Is(NotFoundIfNoRows(pgx.ErrNoRows, "activity"), KindNotFound) {
		t.Fatalf("expected not found")
	}
	other := errors.New("conn reset")
	if NotFoundIfNoRows(other, "activity") != other {
		t.Fatalf("expected passthrough")
	}
}

func TestExternalMessage(t *testing.T) {
	err := External("geocoder unavailable", errors.New("timeout"))
	if err.Error() != "geocoder unavailable: timeout" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if KindExternalDependency.String() != "external_dependency" {
		t.Fatalf("unexpected kind name")
	}
}

func TestToFiber(t *testing.T) {
	ferr := ToFiber(NotFound("challenge not found"))
	var fe *fiber.Error
	if !errors.As(ferr, &fe) || fe.Code != fiber.StatusNotFound {
		t.Fatalf("expected fiber 404")
	}
}
