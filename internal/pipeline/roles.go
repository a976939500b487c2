package pipeline

import "strings"

// Role identifies an operator profile.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleSales     Role = "VENTAS"
	RoleDeposit   Role = "DEPOSITO"
	RoleControl   Role = "CONTROL"
	RoleLogistics Role = "LOGISTICA"
	RoleDriver    Role = "REPARTIDOR"
)

// ParseRole normalises raw role names; unknown values yield an empty Role.
func ParseRole(raw string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleAdmin, RoleSales, RoleDeposit, RoleControl, RoleLogistics, RoleDriver:
		return r
	default:
		return ""
	}
}

// actors maps each target status to the roles allowed to request it.
// RoleAdmin is implicitly allowed everywhere.
var actors = map[Status][]Role{
	StatusConfirmed:      {RoleSales},
	StatusPreparing:      {RoleDeposit},
	StatusPrepared:       {RoleDeposit},
	StatusQualityChecked: {RoleControl},
	StatusAssigned:       {RoleLogistics},
	StatusInDelivery:     {RoleDriver},
	StatusDelivered:      {RoleDriver},
}

// MayRequest reports whether role may move an order from one status to another.
func MayRequest(role Role, from, to Status) bool {
	if !from.CanTransition(to) {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	if to == StatusCancelled {
		return false
	}
	// PREPARED -> PREPARING is the control rejection path.
	if from == StatusPrepared && to == StatusPreparing {
		return role == RoleControl
	}
	for _, r := range actors[to] {
		if r == role {
			return true
		}
	}
	return false
}
