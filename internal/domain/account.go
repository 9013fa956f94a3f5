package domain

// PoolAccount is a pre-funded trading account available for exclusive
// assignment. Accounts are provisioned out-of-band (cmd/import-pool) and are
// never created or destroyed by the engine; only AssignedTo is mutated, and
// only from empty to an agent ID. Accounts are not recycled.
type PoolAccount struct {
	Address string // the account's trading identity

	// Credential is the opaque signing capability for the account. It must
	// never cross the engine boundary: transport layers map PoolAccount to
	// response shapes explicitly and omit it.
	Credential string

	AssignedTo string // agent ID, empty while the account is free
	ImportedAt int64  // unix ms
}

// Free reports whether the account is still available for assignment.
func (p *PoolAccount) Free() bool {
	return p.AssignedTo == ""
}
