package domain

// Operation identifies a lifecycle operation subject to role gating.
// Every mutating operation checks the capability table before acting.
type Operation string

const (
	OpBookList        Operation = "book.list"
	OpBookCreate      Operation = "book.create"
	OpBookUpdate      Operation = "book.update"
	OpInventoryAdjust Operation = "book.inventory.adjust"

	OpLoanListAll  Operation = "loan.list_all"
	OpLoanListOwn  Operation = "loan.list_own"
	OpLoanCheckout Operation = "loan.checkout"
	OpLoanReturn   Operation = "loan.return"
	OpLoanRenewAny Operation = "loan.renew_any"
	OpLoanRenewOwn Operation = "loan.renew_own"

	OpReservationListAll Operation = "reservation.list_all"
	OpReservationListOwn Operation = "reservation.list_own"
	OpReservationReserve Operation = "reservation.reserve"
	OpReservationFulfill Operation = "reservation.fulfill"

	OpUserList          Operation = "user.list"
	OpUserUpdate        Operation = "user.update"
	OpUserRegisterSelf  Operation = "user.register_self"
	OpMemberRegister    Operation = "user.register_member"
	OpStaffRegister     Operation = "user.register_staff"
	OpPolicyList        Operation = "policy.list"
)

// memberOps is the baseline capability set; librarians and admins
// extend it rather than redefining it.
var memberOps = []Operation{
	OpBookList,
	OpLoanListOwn,
	OpLoanRenewOwn,
	OpReservationListOwn,
	OpReservationReserve,
	OpUserRegisterSelf,
	OpPolicyList,
}

var librarianOps = append([]Operation{
	OpBookCreate,
	OpBookUpdate,
	OpInventoryAdjust,
	OpLoanListAll,
	OpLoanCheckout,
	OpLoanReturn,
	OpLoanRenewAny,
	OpReservationListAll,
	OpReservationFulfill,
	OpUserList,
	OpMemberRegister,
}, memberOps...)

var adminOps = append([]Operation{
	OpStaffRegister,
	OpUserUpdate,
}, librarianOps...)

var capabilities = map[Role]map[Operation]struct{}{
	RoleMember:    toSet(memberOps),
	RoleLibrarian: toSet(librarianOps),
	RoleAdmin:     toSet(adminOps),
}

func toSet(ops []Operation) map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// Authorize reports whether the role may invoke the operation.
// Unknown roles have no capabilities.
func Authorize(role Role, op Operation) bool {
	ops, ok := capabilities[role]
	if !ok {
		return false
	}
	_, allowed := ops[op]
	return allowed
}

// CanRegisterRole reports whether a registrar may create an account
// with the target role. Librarians register members; admins register
// staff of any role.
func CanRegisterRole(registrar, target Role) bool {
	if !target.IsValid() {
		return false
	}
	if target == RoleMember {
		return Authorize(registrar, OpMemberRegister)
	}
	return Authorize(registrar, OpStaffRegister)
}
