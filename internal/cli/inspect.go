package cli

import (
	"github.com/spf13/cobra"

	"aemo-price-feed/internal/app"
)

var (
	inspectProduct string
	inspectRegion  string
	inspectLimit   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "解码本地 NEMWEB 报告文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.InspectOptions{
			Path:    args[0],
			Product: inspectProduct,
			Region:  inspectRegion,
			Limit:   inspectLimit,
		}

		return getApp().Inspect(opts)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectProduct, "product", "realtime", "报告类型 (realtime, five_minute, predispatch)")
	inspectCmd.Flags().StringVar(&inspectRegion, "region", "NSW1", "区域代码")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 0, "最多显示的区间数 (0 表示全部)")
}
