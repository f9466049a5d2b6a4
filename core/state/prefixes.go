package state

var (
	issuanceRolesPrefix   = []byte("issuance/roles/")
	issuanceRangePrefix   = []byte("issuance/range/")
	issuanceBalancePrefix = []byte("issuance/balance/")
	issuancePhasesKey     = []byte("issuance/phases")
	issuanceNextIDKey     = []byte("issuance/next-id")
	schemaVersionKey      = []byte("meta/schema-version")
)
