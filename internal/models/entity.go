package models

import "strings"

// Entity identifies one of the pharmacy record types
type Entity string

const (
	EntitySupplier     Entity = "supplier"
	EntityMedicine     Entity = "medicine"
	EntityCustomer     Entity = "customer"
	EntityPrescription Entity = "prescription"
	EntitySale         Entity = "sale"
	EntitySaleItem     Entity = "sale_item"
)

// Entities lists every entity in dependency order
var Entities = []Entity{
	EntitySupplier,
	EntityMedicine,
	EntityCustomer,
	EntityPrescription,
	EntitySale,
	EntitySaleItem,
}

type entityInfo struct {
	prefix     string
	table      string
	key        string
	collection string
}

var entityInfos = map[Entity]entityInfo{
	EntitySupplier:     {prefix: "S", table: "supplier", key: "supplier_id", collection: "suppliers"},
	EntityMedicine:     {prefix: "M", table: "medicine", key: "medicine_id", collection: "medicines"},
	EntityCustomer:     {prefix: "C", table: "customer", key: "customer_id", collection: "customers"},
	EntityPrescription: {prefix: "P", table: "prescription", key: "prescription_id", collection: "prescriptions"},
	EntitySale:         {prefix: "S", table: "sales", key: "sale_id", collection: "sales"},
	EntitySaleItem:     {prefix: "SI", table: "sales_items", key: "sale_item_id", collection: "sale-items"},
}

// Prefix returns the identifier prefix, e.g. "SI" for sale items
func (e Entity) Prefix() string { return entityInfos[e].prefix }

// Table returns the backing table name
func (e Entity) Table() string { return entityInfos[e].table }

// KeyColumn returns the primary key column name
func (e Entity) KeyColumn() string { return entityInfos[e].key }

// Collection returns the plural name used in URLs
func (e Entity) Collection() string { return entityInfos[e].collection }

// Valid reports whether e is a known entity
func (e Entity) Valid() bool {
	_, ok := entityInfos[e]
	return ok
}

// ParseEntity accepts either the singular entity name or its collection name
func ParseEntity(s string) (Entity, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for e, info := range entityInfos {
		if string(e) == s || info.collection == s {
			return e, true
		}
	}
	return "", false
}
