package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YuutaiSentinel/internal/model"
)

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	_, ok, err := kv.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	buf := []byte("x")
	require.NoError(t, kv.Set("a", buf))
	buf[0] = 'y'
	got, ok, err := kv.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", string(got))

	require.NoError(t, kv.Delete("a"))
	_, ok, _ = kv.Get("a")
	assert.False(t, ok)
}

func TestFileKV_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	kv, err := OpenFileKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("k1", []byte(`{"v":1}`)))
	require.NoError(t, kv.Set("k2", []byte("plain")))
	require.NoError(t, kv.Delete("k2"))
	require.NoError(t, kv.Delete("missing"))

	reopened, err := OpenFileKV(path)
	require.NoError(t, err)
	got, ok, err := reopened.Get("k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(got))

	_, ok, _ = reopened.Get("k2")
	assert.False(t, ok)
}

func TestFileKV_FailedSaveKeepsPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	kv, err := OpenFileKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("k1", []byte("old")))

	// A directory in place of the file makes every write fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	assert.Error(t, kv.Set("k1", []byte("new")))
	assert.Error(t, kv.Set("k2", []byte("added")))
	assert.Error(t, kv.Delete("k1"))

	got, ok, err := kv.Get("k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "old", string(got))
	_, ok, _ = kv.Get("k2")
	assert.False(t, ok)
}

func TestMonthCache(t *testing.T) {
	kv := NewMemoryKV()
	mc := NewMonthCache[[]model.YuutaiCandidate](kv)

	_, ok, err := mc.Get(time.March)
	require.NoError(t, err)
	assert.False(t, ok)

	in := []model.YuutaiCandidate{{Code: "3382", Name: "セブン＆アイ", CreditType: "貸借"}}
	require.NoError(t, mc.Set(time.March, in))

	_, present, _ := kv.Get("yuutai.month.march")
	assert.True(t, present)

	got, ok, err := mc.Get(time.March)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, got)

	_, ok, _ = mc.Get(time.September)
	assert.False(t, ok)

	require.NoError(t, mc.Delete(time.March))
	_, ok, _ = mc.Get(time.March)
	assert.False(t, ok)
}

func TestMonthCache_CorruptEntry(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(Key(time.May), []byte("not json")))
	_, ok, err := NewMonthCache[[]model.YuutaiCandidate](kv).Get(time.May)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	defaults := Defaults{
		NotifyRightsDay: true,
		WinThreshold:    0,
		LookbackYears:   10,
		PurchaseAnchor:  model.CalendarAnchor{Month: time.March, Day: 1},
		SaleAnchor:      model.CalendarAnchor{Month: time.March, Day: 27},
	}
	s := NewSettings(NewMemoryKV(), defaults)

	on, err := s.NotifyRightsDay()
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, s.SetNotifyRightsDay(false))
	on, _ = s.NotifyRightsDay()
	assert.False(t, on)

	require.NoError(t, s.SetWinThreshold(2.5))
	th, err := s.WinThreshold()
	require.NoError(t, err)
	assert.Equal(t, 2.5, th)

	n, err := s.LookbackYears()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Error(t, s.SetLookbackYears(-1))
	require.NoError(t, s.SetLookbackYears(5))
	n, _ = s.LookbackYears()
	assert.Equal(t, 5, n)

	p, sale, err := s.Anchors()
	require.NoError(t, err)
	assert.Equal(t, defaults.PurchaseAnchor, p)
	assert.Equal(t, defaults.SaleAnchor, sale)

	newP := model.CalendarAnchor{Month: time.August, Day: 20}
	newS := model.CalendarAnchor{Month: time.August, Day: 27}
	require.NoError(t, s.SetAnchors(newP, newS))
	p, sale, err = s.Anchors()
	require.NoError(t, err)
	assert.Equal(t, newP, p)
	assert.Equal(t, newS, sale)
}

func TestSettings_BadValueFallsBack(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(KeyWinThreshold, []byte("abc")))
	s := NewSettings(kv, Defaults{WinThreshold: 1})
	th, err := s.WinThreshold()
	assert.Error(t, err)
	assert.Equal(t, 1.0, th)
}
