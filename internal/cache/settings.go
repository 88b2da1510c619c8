package cache

import (
	"fmt"
	"strconv"

	"YuutaiSentinel/internal/model"
)

// Setting keys. Each logical setting lives under its own key.
const (
	KeyNotifyRightsDay = "setting.notify.rights_day"
	KeyWinThreshold    = "setting.win_threshold"
	KeyLookbackYears   = "setting.lookback_years"
	KeyPurchaseAnchor  = "setting.purchase_anchor"
	KeySaleAnchor      = "setting.sale_anchor"
)

// Defaults applies when a setting was never written.
type Defaults struct {
	NotifyRightsDay bool
	WinThreshold    float64
	LookbackYears   int
	PurchaseAnchor  model.CalendarAnchor
	SaleAnchor      model.CalendarAnchor
}

// Settings reads and writes user settings as plain text values.
type Settings struct {
	kv       KV
	defaults Defaults
}

// NewSettings wraps kv.
func NewSettings(kv KV, d Defaults) *Settings {
	return &Settings{kv: kv, defaults: d}
}

func (s *Settings) raw(key string) (string, bool, error) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(v), ok, nil
}

// NotifyRightsDay reports whether the rights-day reminder is on.
func (s *Settings) NotifyRightsDay() (bool, error) {
	v, ok, err := s.raw(KeyNotifyRightsDay)
	if err != nil || !ok {
		return s.defaults.NotifyRightsDay, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return s.defaults.NotifyRightsDay, fmt.Errorf("parse %s: %w", KeyNotifyRightsDay, err)
	}
	return b, nil
}

func (s *Settings) SetNotifyRightsDay(on bool) error {
	return s.kv.Set(KeyNotifyRightsDay, []byte(strconv.FormatBool(on)))
}

// WinThreshold is the percent a pair must reach to count as a win.
func (s *Settings) WinThreshold() (float64, error) {
	v, ok, err := s.raw(KeyWinThreshold)
	if err != nil || !ok {
		return s.defaults.WinThreshold, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return s.defaults.WinThreshold, fmt.Errorf("parse %s: %w", KeyWinThreshold, err)
	}
	return f, nil
}

func (s *Settings) SetWinThreshold(pct float64) error {
	return s.kv.Set(KeyWinThreshold, []byte(strconv.FormatFloat(pct, 'f', -1, 64)))
}

// LookbackYears limits win-rate history. Zero means all available history.
func (s *Settings) LookbackYears() (int, error) {
	v, ok, err := s.raw(KeyLookbackYears)
	if err != nil || !ok {
		return s.defaults.LookbackYears, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return s.defaults.LookbackYears, fmt.Errorf("parse %s: %q", KeyLookbackYears, v)
	}
	return n, nil
}

func (s *Settings) SetLookbackYears(n int) error {
	if n < 0 {
		return fmt.Errorf("lookback years must be >= 0, got %d", n)
	}
	return s.kv.Set(KeyLookbackYears, []byte(strconv.Itoa(n)))
}

// Anchors returns the stored purchase and sale anchors.
func (s *Settings) Anchors() (purchase, sale model.CalendarAnchor, err error) {
	purchase, err = s.anchor(KeyPurchaseAnchor, s.defaults.PurchaseAnchor)
	if err != nil {
		return purchase, s.defaults.SaleAnchor, err
	}
	sale, err = s.anchor(KeySaleAnchor, s.defaults.SaleAnchor)
	return purchase, sale, err
}

func (s *Settings) anchor(key string, def model.CalendarAnchor) (model.CalendarAnchor, error) {
	v, ok, err := s.raw(key)
	if err != nil || !ok {
		return def, err
	}
	a, err := model.ParseAnchor(v)
	if err != nil {
		return def, fmt.Errorf("parse %s: %w", key, err)
	}
	return a, nil
}

// SetAnchors stores both anchors.
func (s *Settings) SetAnchors(purchase, sale model.CalendarAnchor) error {
	if err := s.kv.Set(KeyPurchaseAnchor, []byte(purchase.String())); err != nil {
		return err
	}
	return s.kv.Set(KeySaleAnchor, []byte(sale.String()))
}
