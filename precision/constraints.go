package precision

import (
	"fmt"
	"math"
)

// Validate 检查订单价格/数量是否符合精度与最小名义。
// 提交平仓请求前先过一遍，避免交易所 -1111/-4003 拒单。
func (r SymbolRule) Validate(price, qty float64) error {
	if r.tick > 0 && !isMultiple(price, r.tick) {
		return fmt.Errorf("price %.8f not aligned to tickSize %s", price, r.TickSize)
	}
	if r.step > 0 && !isMultiple(qty, r.step) {
		return fmt.Errorf("qty %.8f not aligned to stepSize %s", qty, r.StepSize)
	}
	if r.minNotional > 0 && price*qty < r.minNotional {
		return fmt.Errorf("notional %.8f < minNotional %.8f", price*qty, r.minNotional)
	}
	return nil
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
