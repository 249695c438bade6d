package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"

	"trading-dashboard-go/config"
	"trading-dashboard-go/gateway"
	"trading-dashboard-go/precision"
)

// 运维小工具：打印某交易对推导出的精度规则，核对 exchangeInfo 与本地算法是否一致。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "BTCUSDT", "查询的交易对(如 BTCUSDT)")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.BaseURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
	}
	filter := strings.ToUpper(strings.TrimSpace(*symbol))
	infos, err := client.ExchangeInfo(filter)
	if err != nil {
		log.Fatalf("获取交易对信息失败: %v", err)
	}

	reg := precision.NewRegistry(zap.NewNop())
	reg.Load(infos)
	for _, info := range infos {
		if !strings.EqualFold(info.Symbol, filter) {
			continue
		}
		rule := reg.RuleFor(info.Symbol)
		fmt.Printf("%s 状态=%s\n", info.Symbol, info.Status)
		fmt.Printf("  TickSize=%s -> 价格精度=%d\n", rule.TickSize, rule.PricePrecision)
		fmt.Printf("  StepSize=%s -> 数量精度=%d\n", rule.StepSize, rule.QuantityPrecision)
		return
	}
	fmt.Printf("未找到 %s 的交易对信息，使用默认规则 {%d, %d, %s, %s}\n",
		filter,
		precision.DefaultRule.PricePrecision, precision.DefaultRule.QuantityPrecision,
		precision.DefaultRule.TickSize, precision.DefaultRule.StepSize)
}
