package receipt

import (
	"strings"

	"github.com/dvloznov/gastosmart/internal/domain"
)

// buildExtractionPrompt asks for a single strict JSON object with the
// receipt fields, restricting the category to the known set.
func buildExtractionPrompt() string {
	var cats []string
	for _, c := range domain.Categories {
		if c == domain.CategoryTransfer {
			continue
		}
		cats = append(cats, c)
	}

	var b strings.Builder
	b.WriteString("Analiza esta imagen de una factura o recibo.\n")
	b.WriteString("Extrae la siguiente información en formato JSON estricto:\n")
	b.WriteString("- \"total\": número\n")
	b.WriteString("- \"date\": string en formato YYYY-MM-DD (si no hay año asume el actual)\n")
	b.WriteString("- \"merchant\": nombre del comercio\n")
	b.WriteString("- \"items\": lista de strings con los artículos, si se leen\n")
	b.WriteString("- \"description\": breve resumen de qué es, ej: \"Compra supermercado\"\n")
	b.WriteString("- \"category\": una de: " + strings.Join(cats, ", ") + "\n")
	b.WriteString("- \"currency\": UYU, USD o UI si se puede determinar\n\n")
	b.WriteString("Omite los campos que no puedas leer.\n")
	b.WriteString("Responde ÚNICAMENTE con el objeto JSON.\n")
	b.WriteString("No uses ```json ni ningún Markdown.\n")
	return b.String()
}
