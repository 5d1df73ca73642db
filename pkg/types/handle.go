package types

import "fmt"

// ConnectorTableHandle is the engine-facing handle of a table. The split planner
// only accepts its own concrete *TableHandle and rejects every other variant.
type ConnectorTableHandle interface {
	ConnectorID() string
}

// ConnectorPartition is the engine-facing view of a partition.
type ConnectorPartition interface {
	PartitionID() string
}

// TableHandle identifies a table of the column store.
type TableHandle struct {
	// Connector is the id of the connector that produced the handle
	Connector string `json:"connector_id"`

	// Schema is the keyspace name
	Schema string `json:"schema"`

	// Table is the table name
	Table string `json:"table"`
}

// NewTableHandle creates a table handle for the given connector.
func NewTableHandle(connectorID, schema, table string) *TableHandle {
	return &TableHandle{Connector: connectorID, Schema: schema, Table: table}
}

// ConnectorID returns the id of the owning connector.
func (h *TableHandle) ConnectorID() string {
	return h.Connector
}

// SchemaTableName returns "schema.table".
func (h *TableHandle) SchemaTableName() string {
	return fmt.Sprintf("%s.%s", h.Schema, h.Table)
}

func (h *TableHandle) String() string {
	return h.Connector + ":" + h.SchemaTableName()
}
