package stats

import (
	"math"
	"math/rand"
	"testing"
)

func ar1(n int, phi float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	values := make([]float64, n)
	for i := 1; i < n; i++ {
		values[i] = phi*values[i-1] + rng.NormFloat64()
	}
	return values
}

func TestACF(t *testing.T) {
	acf := ACF(ar1(200, 0.8, 1), 10)

	if acf == nil {
		t.Fatal("ACF returned nil")
	}

	if math.Abs(acf[0]-1.0) > 1e-10 {
		t.Errorf("ACF at lag 0 should be 1, got %f", acf[0])
	}

	if acf[1] < 0.5 {
		t.Errorf("ACF at lag 1 should be strongly positive for AR(1) phi=0.8, got %f", acf[1])
	}

	if ACF([]float64{3, 3, 3, 3}, 2) != nil {
		t.Error("ACF of a constant series should be nil")
	}
}

func TestPACF(t *testing.T) {
	pacf := PACF(ar1(300, 0.7, 2), 10)

	if pacf == nil {
		t.Fatal("PACF returned nil")
	}

	if math.Abs(pacf[0]-1.0) > 1e-10 {
		t.Errorf("PACF at lag 0 should be 1, got %f", pacf[0])
	}

	if pacf[1] < 0.4 {
		t.Errorf("PACF at lag 1 seems low for AR(1) with phi=0.7: %f", pacf[1])
	}
	t.Logf("PACF: %v", pacf)
}

func TestSignificantLags(t *testing.T) {
	values := []float64{1.0, 0.5, 0.3, 0.1, 0.05, -0.2, -0.5}

	significant := SignificantLags(values, 0.15)

	expected := []int{1, 2, 5, 6}
	if len(significant) != len(expected) {
		t.Fatalf("Expected %d significant lags, got %d", len(expected), len(significant))
	}
	for i, l := range expected {
		if significant[i] != l {
			t.Errorf("Expected lag %d at %d, got %d", l, i, significant[i])
		}
	}

	if math.Abs(ConfBound(100)-0.196) > 1e-12 {
		t.Errorf("Unexpected confidence bound %f", ConfBound(100))
	}
}

func TestADF(t *testing.T) {
	n := 200
	stationary := make([]float64, n)
	for i := range stationary {
		stationary[i] = 100 + math.Sin(float64(i)/10)*5 + float64(i%5-2)
	}

	result := ADF(stationary, 0)
	if result == nil {
		t.Fatal("ADF returned nil for stationary data")
	}

	t.Logf("ADF Statistic: %f, P-Value: %f, IsStationary: %v",
		result.Statistic, result.PValue, result.IsStationary)

	if ADF(stationary[:5], 0) != nil {
		t.Error("ADF should return nil for short series")
	}
}

func TestKPSS(t *testing.T) {
	n := 200
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = float64(i) * 0.5
	}

	result := KPSS(trend, 0)
	if result == nil {
		t.Fatal("KPSS returned nil")
	}

	if result.IsStationary {
		t.Errorf("Linear trend should not be level stationary (stat=%f)", result.Statistic)
	}

	t.Logf("KPSS Trend - Statistic: %f, P-Value: %f", result.Statistic, result.PValue)
}

func TestNDiffs(t *testing.T) {
	n := 200
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)*0.5 + float64(i%5-2)
	}

	if d := NDiffs(values, 2, "kpss"); d != 1 {
		t.Errorf("Expected 1 difference for a linear trend, got %d", d)
	}

	if d := NDiffs(values[:8], 2, ""); d != 0 {
		t.Errorf("Expected 0 for a series too short to test, got %d", d)
	}
}

func TestLjungBox(t *testing.T) {
	result := LjungBox(ar1(200, 0.9, 3), 10, 0)
	if result == nil {
		t.Fatal("LjungBox returned nil")
	}

	if result.WhiteNoise() {
		t.Errorf("AR(1) phi=0.9 should be detected as autocorrelated, p=%f", result.PValue)
	}

	noise := ar1(200, 0, 4)
	wn := LjungBox(noise, 10, 2)
	if wn == nil {
		t.Fatal("LjungBox returned nil for white noise")
	}
	if wn.DOF != 8 {
		t.Errorf("Expected 8 degrees of freedom, got %d", wn.DOF)
	}

	t.Logf("Ljung-Box white noise - Q: %f, P-Value: %f", wn.Statistic, wn.PValue)

	if LjungBox(noise[:5], 10, 0) != nil {
		t.Error("LjungBox should return nil for short input")
	}
}

func TestDurbinWatson(t *testing.T) {
	tests := []struct {
		name      string
		residuals []float64
		high      bool
	}{
		{"alternating", []float64{1, -1, 1, -1, 1, -1, 1, -1}, true},
		{"persistent", []float64{1, 1, 1, 1, -1, -1, -1, -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dw := DurbinWatson(tt.residuals)
			if tt.high && dw <= 2 {
				t.Errorf("Expected high DW, got %f", dw)
			}
			if !tt.high && dw >= 2 {
				t.Errorf("Expected low DW, got %f", dw)
			}
		})
	}
}

func TestCalculateIC(t *testing.T) {
	ic := CalculateIC(-100, 50, 3)

	if math.Abs(ic.AIC-206) > 1e-10 {
		t.Errorf("Expected AIC 206, got %f", ic.AIC)
	}
	if math.Abs(ic.BIC-(200+3*math.Log(50))) > 1e-10 {
		t.Errorf("Unexpected BIC %f", ic.BIC)
	}
	if ic.AICc <= ic.AIC {
		t.Errorf("AICc should exceed AIC for small samples, got %f", ic.AICc)
	}

	if !math.IsInf(CalculateIC(-1, 3, 3).AICc, 1) {
		t.Error("AICc should be +Inf when n-k-1 <= 0")
	}
}

func TestGaussianLogLik(t *testing.T) {
	ll := GaussianLogLik(100, 100)
	expected := -50 * (math.Log(2*math.Pi) + 1)
	if math.Abs(ll-expected) > 1e-10 {
		t.Errorf("Expected %f, got %f", expected, ll)
	}
	if !math.IsInf(GaussianLogLik(0, 10), -1) {
		t.Error("Expected -Inf for zero SSE")
	}
}
