package state

import (
	"errors"
	"fmt"
)

// SchemaVersion identifies the on-disk key layout written by this package.
// Increment it whenever stored structures change incompatibly.
const SchemaVersion uint64 = 2

// ErrSchemaVersionMismatch indicates the stored schema version does not
// match the version supported by the current binary.
var ErrSchemaVersionMismatch = errors.New("state: schema version mismatch")

// EnsureSchema stamps an empty database with SchemaVersion and rejects
// databases written with a different layout.
func (m *Manager) EnsureSchema() error {
	var stored uint64
	ok, err := m.getRLP(schemaVersionKey, &stored)
	if err != nil {
		return err
	}
	if !ok {
		return m.putRLP(schemaVersionKey, SchemaVersion)
	}
	if stored != SchemaVersion {
		return fmt.Errorf("%w: stored %d, supported %d", ErrSchemaVersionMismatch, stored, SchemaVersion)
	}
	return nil
}
