package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/statement-agent/internal/domain"
)

func TestBuildFinancialsURL(t *testing.T) {
	cases := []struct {
		name      string
		statement domain.StatementType
		period    domain.Period
		dataType  domain.DataType
		want      string
	}{
		{
			name:      "quarterly income as-reported",
			statement: domain.StatementIncome,
			period:    domain.PeriodQuarterly,
			dataType:  domain.DataTypeAsReported,
			want:      "https://stockanalysis.com/stocks/zm/financials/?p=quarterly&type=as-reported",
		},
		{
			name:      "annual balance sheet as-reported",
			statement: domain.StatementBalance,
			period:    domain.PeriodAnnual,
			dataType:  domain.DataTypeAsReported,
			want:      "https://stockanalysis.com/stocks/zm/financials/balance-sheet/?type=as-reported",
		},
		{
			name:      "quarterly cash flow as-reported",
			statement: domain.StatementCashflow,
			period:    domain.PeriodQuarterly,
			dataType:  domain.DataTypeAsReported,
			want:      "https://stockanalysis.com/stocks/zm/financials/cash-flow-statement/?p=quarterly&type=as-reported",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := buildFinancialsURL("https://stockanalysis.com", "ZM", tc.statement, tc.period, tc.dataType)
			assert.Equal(t, tc.want, got)
		})
	}
}
