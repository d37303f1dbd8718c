package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

func TestRenderedFetchTable(t *testing.T) {
	a := NewRendered(RenderedOptions{
		EntityID:   "davivienda",
		EntityName: "Davivienda",
		Product:    rates.ProductCDT,
		URL:        "https://example.test/cdt",
		Terms:      []int{30, 60, 90},
	}, zerolog.Nop())
	a.render = func(_ context.Context, url string, _ time.Duration) (string, error) {
		if url != "https://example.test/cdt" {
			t.Errorf("render url = %q", url)
		}
		return cdtTableHTML, nil
	}

	out := a.Fetch(context.Background())
	if out.Kind != KindSuccess {
		t.Fatalf("kind = %s (%s: %s), want SUCCESS", out.Kind, out.Reason, out.Detail)
	}
	if len(out.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(out.Records))
	}
	if want := decimal.RequireFromString("9.45"); !out.Records[1].AnnualRatePct.Equal(want) {
		t.Errorf("60d rate = %s, want %s", out.Records[1].AnnualRatePct, want)
	}
}

func TestRenderedFetchTimeout(t *testing.T) {
	a := NewRendered(RenderedOptions{
		EntityID: "banco_bogota",
		Product:  rates.ProductCDT,
		URL:      "https://example.test/cdt",
		Timeout:  10 * time.Millisecond,
	}, zerolog.Nop())
	a.render = func(ctx context.Context, _ string, _ time.Duration) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	out := a.Fetch(context.Background())
	if out.Kind != KindFailure || out.Reason != ReasonTimeout {
		t.Fatalf("outcome = %s/%s, want FAILURE/TIMEOUT", out.Kind, out.Reason)
	}
}

func TestRenderedFetchBrowserError(t *testing.T) {
	a := NewRendered(RenderedOptions{
		EntityID: "popular",
		Product:  rates.ProductCDT,
		URL:      "https://example.test/cdt",
	}, zerolog.Nop())
	a.render = func(context.Context, string, time.Duration) (string, error) {
		return "", errors.New("chrome crashed")
	}

	out := a.Fetch(context.Background())
	if out.Kind != KindFailure || out.Reason != ReasonNetwork {
		t.Fatalf("outcome = %s/%s, want FAILURE/NETWORK", out.Kind, out.Reason)
	}
}
