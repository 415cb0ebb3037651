package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessFeature_Matrix(t *testing.T) {
	// Таблица повторяет авторитетную матрицу feature × tier.
	tests := []struct {
		feature Feature
		guest   bool
		free    bool
		pers    bool
		pro     bool
	}{
		{FeatureNutrition, false, false, true, true},
		{FeatureOffline, false, false, false, true},
		{FeatureTravel, false, false, true, true},
		{FeatureBaby, false, false, false, true},
		{FeatureWallet, false, false, true, true},
		{FeaturePlanner, false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			assert.Equal(t, tt.guest, CanAccessFeature(Guest, tt.feature))
			assert.Equal(t, tt.free, CanAccessFeature(Free, tt.feature))
			assert.Equal(t, tt.pers, CanAccessFeature(Personal, tt.feature))
			assert.Equal(t, tt.pro, CanAccessFeature(Pro, tt.feature))
		})
	}
}

func TestCanAccessFeature_GuestDenied(t *testing.T) {
	// Гостю запрещены эти функции независимо от матрицы.
	for _, f := range []Feature{FeatureWallet, FeaturePlanner, FeatureOffline, FeatureTravel, FeatureBaby} {
		assert.False(t, CanAccessFeature(Guest, f), "guest must be denied %s", f)
	}
}

func TestIsCountryUnlocked(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		country  string
		unlocked []string
		want     bool
	}{
		{"personal видит любую страну", Personal, "Italy", nil, true},
		{"pro видит любую страну", Pro, "Japan", nil, true},
		{"free видит бесплатную страну", Free, "Spain", nil, true},
		{"guest видит бесплатную страну", Guest, "Canada", nil, true},
		{"free не видит премиум-страну", Free, "Italy", nil, false},
		{"free видит разблокированную страну", Free, "Italy", []string{"Italy"}, true},
		{"guest не видит чужую разблокировку", Guest, "Italy", []string{"France"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCountryUnlocked(tt.tier, tt.country, tt.unlocked))
		})
	}
}

func TestIsCountryUnlocked_FreeListForAllTiers(t *testing.T) {
	for country := range freeCountries {
		for _, tr := range []Tier{Guest, Free, Personal, Pro} {
			assert.True(t, IsCountryUnlocked(tr, country, nil),
				"country %s must be unlocked for tier %s", country, tr)
		}
	}
}

func TestDailyLimit(t *testing.T) {
	assert.Equal(t, 0, DailyLimit(Guest, MeterAI))
	assert.Equal(t, 3, DailyLimit(Free, MeterAI))
	assert.Equal(t, 20, DailyLimit(Personal, MeterAI))
	assert.Equal(t, 9999, DailyLimit(Pro, MeterAI))

	assert.Equal(t, 0, DailyLimit(Free, MeterTravel))
	assert.Equal(t, 5, DailyLimit(Personal, MeterTravel))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, Pro, ParseTier("pro"))
	assert.Equal(t, Guest, ParseTier("guest"))
	assert.Equal(t, Free, ParseTier("unknown-tier"))
}
