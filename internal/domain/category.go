package domain

// Known categories. Labels are the ones users see and are stored verbatim.
const (
	CategoryFood          = "Alimentación"
	CategoryTransport     = "Transporte"
	CategoryHousing       = "Vivienda"
	CategoryUtilities     = "Servicios"
	CategoryEntertainment = "Entretenimiento"
	CategoryHealth        = "Salud"
	CategoryShopping      = "Compras"
	CategorySalary        = "Salario"
	CategoryInvestment    = "Inversiones"
	CategoryTransfer      = "Transferencia"
	CategoryOther         = "Otros"
)

// TransferDescription is the fixed label given to every transfer.
const TransferDescription = "Transferencia entre cuentas"

// Categories is the ordered list of known categories.
var Categories = []string{
	CategoryFood,
	CategoryTransport,
	CategoryHousing,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryHealth,
	CategoryShopping,
	CategorySalary,
	CategoryInvestment,
	CategoryTransfer,
	CategoryOther,
}

// IsKnownCategory reports whether name is one of Categories.
func IsKnownCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}
