package domain

import "errors"

// Errores de dominio (sin dependencias externas).
//
// Tres familias, cada una con su destino:
//   - Validación (entrada, autorización, transición ilegal, pedido expirado):
//     nunca se reintentan, el caller las mapea a error de cliente.
//   - Contención (stock insuficiente): el motor de inventario la devuelve como
//     fallo estructurado por ítem; hacia afuera se presenta como validación.
//   - Infraestructura (verificación de escritura fallida, rollback fallido,
//     fallo inesperado del store): se loguean como críticos y NO se reintentan
//     automáticamente; re-aplicar un cambio de stock a ciegas arriesga doble
//     mutación, se prefiere reconciliación manual.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrInvalidTransition = errors.New("transición de estado ilegal")
	ErrOrderExpired      = errors.New("el pedido ha expirado")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrStockVerification = errors.New("verificación de escritura de stock fallida")
	ErrRollbackFailed    = errors.New("rollback de stock fallido")
	ErrStoreFailure      = errors.New("fallo de persistencia")
)

// IsValidation reporta si err pertenece a la familia de validación
// (incluye stock insuficiente, que el caller ve como error de cliente).
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrOrderExpired) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNotFound)
}
