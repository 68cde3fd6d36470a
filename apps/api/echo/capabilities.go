package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ramesh-perabattula/EduPay/core/ledger"
)

// Roles
const (
	RoleAdmin            = "admin"
	RolePrincipal        = "principal"
	RoleRegistrar        = "registrar"
	RoleHostelWarden     = "hostel_warden"
	RoleTransportDept    = "transport_dept"
	RolePlacementOfficer = "placement_officer"
)

// Capabilities
const (
	CapViewStudents = "students:view"
	CapRegister     = "students:register"
	CapFacilities   = "students:facilities"
	CapPromote      = "students:promote"
	CapAnalytics    = "analytics:view"
)

func payCap(ft ledger.FeeType) string {
	return "fees:pay:" + string(ft)
}

func assignCap(ft ledger.FeeType) string {
	return "fees:assign:" + string(ft)
}

// roleCapabilities maps each role to the capabilities it grants.
var roleCapabilities = map[string][]string{
	RolePrincipal:        {CapViewStudents, CapAnalytics},
	RoleRegistrar:        {CapRegister, CapViewStudents},
	RoleHostelWarden:     {payCap(ledger.Hostel), assignCap(ledger.Hostel), CapFacilities},
	RoleTransportDept:    {payCap(ledger.Transport), assignCap(ledger.Transport), CapFacilities},
	RolePlacementOfficer: {payCap(ledger.Placement), assignCap(ledger.Placement)},
}

func init() {
	all := []string{CapViewStudents, CapRegister, CapFacilities, CapPromote, CapAnalytics}
	for _, ft := range ledger.FeeTypes {
		all = append(all, payCap(ft), assignCap(ft))
	}
	roleCapabilities[RoleAdmin] = all
}

// rolesGrant reports whether the roles grant every capability in caps.
func rolesGrant(roles []string, caps ...string) bool {
	granted := make(map[string]bool)
	for _, role := range roles {
		for _, c := range roleCapabilities[role] {
			granted[c] = true
		}
	}
	for _, c := range caps {
		if !granted[c] {
			return false
		}
	}
	return true
}

func checkCapabilities(ctx echo.Context, caps ...string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !rolesGrant(claims.Roles, caps...) {
		return errHttpForbidden
	}
	return nil
}

func capabilityMiddleware(caps ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := checkCapabilities(ctx, caps...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// checkAnyPayCapability rejects callers who cannot record payments for any stream.
func checkAnyPayCapability(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	for _, ft := range ledger.FeeTypes {
		if rolesGrant(claims.Roles, payCap(ft)) {
			return nil
		}
	}
	return errHttpForbidden
}
