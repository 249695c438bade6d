package precision

import (
	"math"
	"strconv"
)

// Normalizer 把任意浮点输入整形为符合交易所规则的合法值。
// 纯函数：同一规则集下同一输入恒得同一输出。
type Normalizer struct {
	Registry *Registry
}

// Price 按交易对的价格精度与 tickSize 归一化价格。
func (n Normalizer) Price(symbol string, v float64) float64 {
	rule := n.Registry.RuleFor(symbol)
	return normalize(v, rule.PricePrecision, rule.tick)
}

// Quantity 按交易对的数量精度与 stepSize 归一化数量。
func (n Normalizer) Quantity(symbol string, v float64) float64 {
	rule := n.Registry.RuleFor(symbol)
	return normalize(v, rule.QuantityPrecision, rule.step)
}

// FormatPrice 输出定长小数字符串，供展示层直接使用。
func (n Normalizer) FormatPrice(symbol string, v float64) string {
	rule := n.Registry.RuleFor(symbol)
	return strconv.FormatFloat(normalize(v, rule.PricePrecision, rule.tick), 'f', rule.PricePrecision, 64)
}

// FormatQuantity 输出定长小数字符串，供展示层直接使用。
func (n Normalizer) FormatQuantity(symbol string, v float64) string {
	rule := n.Registry.RuleFor(symbol)
	return strconv.FormatFloat(normalize(v, rule.QuantityPrecision, rule.step), 'f', rule.QuantityPrecision, 64)
}

// normalize 三步整形：
//  1. 按精度做 round-half-away-from-zero
//  2. 对齐到 tick/step 的整数倍（step<=0 时跳过）
//  3. 定长格式化后重新解析，消除二进制浮点残差（0.1+0.2 一类）
func normalize(v float64, prec int, step float64) float64 {
	r := roundHalfAway(v, prec)
	if step > 0 {
		r = math.Round(r/step) * step
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(r, 'f', prec, 64), 64)
	if err != nil {
		return r
	}
	return out
}

func roundHalfAway(v float64, prec int) float64 {
	pow := math.Pow10(prec)
	scaled := v * pow
	if scaled >= 0 {
		return math.Floor(scaled+0.5) / pow
	}
	return math.Ceil(scaled-0.5) / pow
}
