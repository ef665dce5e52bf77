package drift

import (
	"math"
	"sort"
)

// KSResult 双样本 Kolmogorov-Smirnov 检验结果。
type KSResult struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	Reject    bool    `json:"reject"`
}

// KolmogorovSmirnov 双样本 KS 检验，p 值用渐近 Q_KS 级数近似。
// alpha 水平下 Reject=true 表示两组分布显著不同。
func KolmogorovSmirnov(a, b []float64, alpha float64) KSResult {
	if alpha <= 0 {
		alpha = 0.05
	}
	if len(a) == 0 || len(b) == 0 {
		return KSResult{PValue: 1}
	}
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	var d float64
	i, j := 0, 0
	na, nb := float64(len(sa)), float64(len(sb))
	for i < len(sa) && j < len(sb) {
		if sa[i] <= sb[j] {
			i++
		} else {
			j++
		}
		diff := math.Abs(float64(i)/na - float64(j)/nb)
		if diff > d {
			d = diff
		}
	}

	ne := na * nb / (na + nb)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * d
	p := ksProbability(lambda)
	return KSResult{Statistic: d, PValue: p, Reject: p < alpha}
}

// ksProbability Q_KS(λ) = 2 Σ (-1)^(k-1) exp(-2 k² λ²)
func ksProbability(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
