package services

import (
	"testing"

	"quest-progression-system/models"
)

func TestMultiplierFor(t *testing.T) {
	tests := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{1, 1.0},
		{2, 1.0},
		{3, 1.05},
		{6, 1.05},
		{7, 1.10},
		{13, 1.10},
		{14, 1.20},
		{29, 1.20},
		{30, 1.35},
		{365, 1.35},
	}
	for _, tt := range tests {
		if got := DefaultMultiplierPolicy.For(tt.streak); got != tt.want {
			t.Errorf("For(%d) = %v, want %v", tt.streak, got, tt.want)
		}
	}
}

func TestMultiplierDisabled(t *testing.T) {
	p := NewMultiplierPolicy(false, models.DefaultMultiplierTiers())
	if got := p.For(30); got != 1.0 {
		t.Errorf("For(30) with multiplier disabled = %v, want 1.0", got)
	}
	gain, mult := p.Gain(20, 30)
	if gain != 20 || mult != 1.0 {
		t.Errorf("Gain = (%d, %v), want (20, 1.0)", gain, mult)
	}
}

func TestMultiplierGainRounds(t *testing.T) {
	tests := []struct {
		base   int64
		streak int
		want   int64
	}{
		{20, 1, 20},
		{20, 3, 21},
		{20, 7, 22},
		{20, 14, 24},
		{20, 30, 27},
		{14, 3, 15},  // 14.7
		{10, 30, 14}, // 13.5 rounds half up
		{38, 7, 42},  // 41.8
	}
	for _, tt := range tests {
		if got, _ := DefaultMultiplierPolicy.Gain(tt.base, tt.streak); got != tt.want {
			t.Errorf("Gain(%d, %d) = %d, want %d", tt.base, tt.streak, got, tt.want)
		}
	}
}

func TestMultiplierUnsortedTiers(t *testing.T) {
	p := NewMultiplierPolicy(true, []models.MultiplierTier{
		{Days: 2, Multiplier: 1.5},
		{Days: 10, Multiplier: 3},
		{Days: 5, Multiplier: 2},
	})
	if got := p.For(6); got != 2 {
		t.Errorf("For(6) = %v, want 2", got)
	}
	if got := p.For(10); got != 3 {
		t.Errorf("For(10) = %v, want 3", got)
	}
	if got := p.For(1); got != 1 {
		t.Errorf("For(1) = %v, want 1", got)
	}
}
