package retention

import "github.com/shopspring/decimal"

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

// DefaultTable returns the built-in RG 830 rate table. It is used when
// no rate-table file is configured and as the baseline for tests.
// Amounts are in ARS.
func DefaultTable() Table {
	return Table{
		Scale: Scale{
			{Lower: d("0"), Upper: dp("8000"), Fixed: d("0"), Rate: d("0.05")},
			{Lower: d("8000"), Upper: dp("16000"), Fixed: d("400"), Rate: d("0.10")},
			{Lower: d("16000"), Upper: dp("24000"), Fixed: d("1200"), Rate: d("0.15")},
			{Lower: d("24000"), Upper: dp("32000"), Fixed: d("2400"), Rate: d("0.20")},
			{Lower: d("32000"), Upper: dp("48000"), Fixed: d("4000"), Rate: d("0.25")},
			{Lower: d("48000"), Upper: dp("64000"), Fixed: d("8000"), Rate: d("0.28")},
			{Lower: d("64000"), Upper: dp("96000"), Fixed: d("12480"), Rate: d("0.30")},
			{Lower: d("96000"), Upper: nil, Fixed: d("22080"), Rate: d("0.31")},
		},
		Categories: map[string]CategoryRule{
			"19": {
				Code:             "19",
				Description:      "Enajenación de bienes muebles y bienes de cambio",
				RegisteredRate:   dp("0.02"),
				UnregisteredRate: d("0.10"),
				ExemptThreshold:  d("12000"),
			},
			"21": {
				Code:             "21",
				Description:      "Locaciones de obra y/o servicios",
				RegisteredRate:   dp("0.06"),
				UnregisteredRate: d("0.28"),
				ExemptThreshold:  d("7870"),
			},
			"25": {
				Code:             "25",
				Description:      "Profesiones liberales y honorarios",
				UnregisteredRate: d("0.28"),
				ExemptThreshold:  d("16830"),
				UsesScale:        true,
			},
			"31": {
				Code:             "31",
				Description:      "Intereses por operaciones no comprendidas en entidades financieras",
				RegisteredRate:   dp("0.03"),
				UnregisteredRate: d("0.10"),
				ExemptThreshold:  d("3500"),
			},
			"110": {
				Code:             "110",
				Description:      "Alquileres de inmuebles urbanos",
				RegisteredRate:   dp("0.06"),
				UnregisteredRate: d("0.28"),
				ExemptThreshold:  d("7870"),
			},
		},
	}
}
