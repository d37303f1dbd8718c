package config

// shortTerms is the CDT term structure every bank source is expected to
// publish. Longer horizons exist but are not tracked here.
var shortTerms = []int{30, 60, 90}

// DefaultSources is the built-in catalog of Colombian rate sources, used
// when the configuration file declares none.
func DefaultSources() []Source {
	return []Source{
		{
			EntityID:      "bancolombia",
			DisplayName:   "Bancolombia",
			ProductType:   "CDT",
			FetchStrategy: "rendered",
			SourceURL:     "https://www.bancolombia.com/personas/productos-servicios/inversiones/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "davivienda",
			DisplayName:   "Davivienda",
			ProductType:   "CDT",
			FetchStrategy: "rendered",
			SourceURL:     "https://www.davivienda.com/wps/portal/personas/nuevo/personas/quiero_invertir/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "bbva",
			DisplayName:   "BBVA Colombia",
			ProductType:   "CDT",
			FetchStrategy: "direct",
			SourceURL:     "https://www.bbva.com.co/personas/productos/inversion/cdt.html",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "banco_bogota",
			DisplayName:   "Banco de Bogota",
			ProductType:   "CDT",
			FetchStrategy: "rendered",
			SourceURL:     "https://www.bancodebogota.com/wps/portal/banco-bogota/bogota/productos/para-ti/inversiones/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "popular",
			DisplayName:   "Banco Popular",
			ProductType:   "CDT",
			FetchStrategy: "rendered",
			SourceURL:     "https://www.bancopopular.com.co/wps/portal/popular/inicio/personas/inversiones/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "colpatria",
			DisplayName:   "Scotiabank Colpatria",
			ProductType:   "CDT",
			FetchStrategy: "direct",
			SourceURL:     "https://www.scotiabankcolpatria.com/personas/inversiones/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "finandina",
			DisplayName:   "Banco Finandina",
			ProductType:   "CDT",
			FetchStrategy: "direct",
			SourceURL:     "https://www.bancofinandina.com/personas/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "pichincha",
			DisplayName:   "Banco Pichincha",
			ProductType:   "CDT",
			FetchStrategy: "direct",
			SourceURL:     "https://www.bancopichincha.com.co/web/personas/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "ban100",
			DisplayName:   "Ban100",
			ProductType:   "CDT",
			FetchStrategy: "direct",
			SourceURL:     "https://www.ban100.com.co/cdt",
			TermDays:      shortTerms,
		},
		{
			EntityID:      "nubank",
			DisplayName:   "Nubank (Cajitas)",
			ProductType:   "SAVINGS",
			FetchStrategy: "direct",
			SourceURL:     "https://nu.com.co/",
			TermDays:      []int{0},
			Extract:       "text",
		},
		{
			EntityID:      "pibank",
			DisplayName:   "Pibank",
			ProductType:   "SAVINGS",
			FetchStrategy: "direct",
			SourceURL:     "https://www.pibank.co/",
			TermDays:      []int{0},
			Extract:       "text",
		},
		{
			EntityID:      "lulobank",
			DisplayName:   "Lulo Bank",
			ProductType:   "SAVINGS",
			FetchStrategy: "direct",
			SourceURL:     "https://www.lulobank.com/",
			TermDays:      []int{0},
			Extract:       "text",
		},
		{
			EntityID:      "atomyrent",
			DisplayName:   "Atomy Rent",
			ProductType:   "FIDUCIARY",
			FetchStrategy: "derived",
			SourceURL:     "https://atomyrent.com/",
			TermDays:      []int{0},
			AnnualRatePct: 15.5,
		},
		{
			EntityID:        "finca_raiz",
			DisplayName:     "Finca Raiz Colombia",
			ProductType:     "REAL_ESTATE",
			FetchStrategy:   "derived",
			SourceURL:       "https://www.fedelonjas.org.co/",
			TermDays:        []int{0},
			MonthlyYieldPct: 0.5,
		},
	}
}
