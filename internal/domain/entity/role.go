package entity

// Role actor que origina una operación. Solo se usa para atribución en
// auditoría (movimientos, timeline); la autorización vive en la capa API.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Valid reporta si el rol pertenece al enum cerrado.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleAdmin, RoleSystem:
		return true
	}
	return false
}
