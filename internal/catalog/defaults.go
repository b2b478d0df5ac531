package catalog

// DefaultStrategy is the name of the built-in prompt template.
const DefaultStrategy = "wyckoff-swing"

// wyckoffSwingTemplate asks the model to evaluate the previous plan against
// the new chart, then write a fresh Wyckoff plan sized to the equity.
const wyckoffSwingTemplate = `Peran: Ahli Swing Trader Indonesia & Wyckoff Strategist.

TUGAS 1 (EVALUASI):
Bandingkan chart ini dengan analisa terakhir:
{last_analysis}

TUGAS 2 (ANALISA BARU):
Buat trading plan Wyckoff dalam tabel vertikal.
Aturan: RRR minimal 1:2, gunakan Batas Atas Range Entry untuk Grup 2.
Modal: Rp {equity}
`

// DefaultProviders is used when no providers resource exists.
func DefaultProviders() ProviderCatalog {
	return ProviderCatalog{
		"gemini": {"gemini-3-flash-preview"},
	}
}

// DefaultPrompts is used when no prompts resource exists.
func DefaultPrompts() PromptCatalog {
	return PromptCatalog{
		DefaultStrategy: wyckoffSwingTemplate,
	}
}
