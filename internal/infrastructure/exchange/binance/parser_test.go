package binance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

func TestParseTickLastPrice(t *testing.T) {
	tick, err := ParseTick([]byte(`{"e":"24hrTicker","E":1700000000123,"s":"BTCUSDT","c":"65000.10","v":"1.5"}`))
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if !tick.HasPrice() {
		t.Fatalf("expected last price to be present")
	}
	if !tick.LastPrice.Decimal.Equal(decimal.RequireFromString("65000.10")) {
		t.Errorf("expected 65000.10, got %s", tick.LastPrice.Decimal)
	}
	if tick.LastPrice.Decimal.String() != "65000.1" {
		t.Errorf("unexpected decimal string %s", tick.LastPrice.Decimal.String())
	}
	if tick.EventTime != 1700000000123 {
		t.Errorf("expected event time 1700000000123, got %d", tick.EventTime)
	}
	if tick.Fields["s"] != "BTCUSDT" {
		t.Errorf("expected opaque fields to be kept, got %v", tick.Fields["s"])
	}
}

func TestParseTickNumericPrice(t *testing.T) {
	tick, err := ParseTick([]byte(`{"c":2001.5}`))
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if !tick.HasPrice() || !tick.LastPrice.Decimal.Equal(decimal.RequireFromString("2001.5")) {
		t.Errorf("expected 2001.5, got %+v", tick.LastPrice)
	}
}

func TestParseTickMissingPriceIsNoUpdate(t *testing.T) {
	for _, payload := range []string{`{}`, `{"s":"BTCUSDT"}`, `{"c":null}`, `{"c":"  "}`} {
		tick, err := ParseTick([]byte(payload))
		if err != nil {
			t.Fatalf("ParseTick(%s) failed: %v", payload, err)
		}
		if tick.HasPrice() {
			t.Errorf("ParseTick(%s): expected no price, got %s", payload, tick.LastPrice.Decimal)
		}
	}
}

func TestParseTickCombinedStream(t *testing.T) {
	tick, err := ParseTick([]byte(`{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"64000"}}`))
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if tick.Stream != "btcusdt@ticker" {
		t.Errorf("expected stream btcusdt@ticker, got %q", tick.Stream)
	}
	if !tick.HasPrice() || !tick.LastPrice.Decimal.Equal(decimal.NewFromInt(64000)) {
		t.Errorf("expected 64000, got %+v", tick.LastPrice)
	}
}

func TestParseTickUnknownFieldsIgnored(t *testing.T) {
	tick, err := ParseTick([]byte(`{"c":"1.25","future":{"nested":[1,2,3]},"flag":true}`))
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if !tick.HasPrice() {
		t.Errorf("expected price despite unknown fields")
	}
}

func TestParseTickMalformed(t *testing.T) {
	cases := []string{
		``,
		`not-json`,
		`{"c":"65000.10"`,
		`[1,2,3]`,
		`"c"`,
		`42`,
		`null`,
		`{"c":"abc"}`,
		`{"c":true}`,
		`{"c":"1"} trailing`,
	}
	for _, payload := range cases {
		_, err := ParseTick([]byte(payload))
		var pe *domain.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseTick(%q): expected *domain.ParseError, got %v", payload, err)
		}
	}
}
