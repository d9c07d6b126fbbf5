package models

import "github.com/google/uuid"

// RuleChain is a node in a tenant's processing graph
// Maps to: rule_chain table
type RuleChain struct {
	ID       uuid.UUID `db:"id" json:"id"`
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	Name     string    `db:"name" json:"name"`
	Root     bool      `db:"root" json:"root"`
}

// RuleChainConnection is a forward reference from one chain to another.
// Only forward references are stored; there is no reverse index.
// Maps to: rule_chain_connection table
type RuleChainConnection struct {
	FromIndex         int       `db:"from_index" json:"from_index"`
	TargetRuleChainID uuid.UUID `db:"target_rule_chain_id" json:"target_rule_chain_id"`
	Type              string    `db:"type" json:"type"`
}
