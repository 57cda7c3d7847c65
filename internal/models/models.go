package models

// Supplier represents a medicine supplier
type Supplier struct {
	SupplierID    string `db:"supplier_id" json:"supplier_id"`
	Name          string `db:"s_name" json:"s_name"`
	ContactNumber string `db:"contact_number" json:"contact_number"`
	Email         string `db:"email" json:"email"`
	Address       string `db:"address" json:"address"`
}

// Medicine represents a stocked medicine batch
type Medicine struct {
	MedicineID  string  `db:"medicine_id" json:"medicine_id"`
	Name        string  `db:"m_name" json:"m_name"`
	Brand       string  `db:"brand" json:"brand"`
	BatchNumber string  `db:"batch_number" json:"batch_number"`
	ExpiryDate  Date    `db:"expiry_date" json:"expiry_date"`
	Quantity    int     `db:"quantity" json:"quantity"`
	Price       float64 `db:"price" json:"price"`
	SupplierID  string  `db:"supplier_id" json:"supplier_id"`
}

// Customer represents a pharmacy customer
type Customer struct {
	CustomerID    string `db:"customer_id" json:"customer_id"`
	Name          string `db:"c_name" json:"c_name"`
	ContactNumber string `db:"contact_number" json:"contact_number"`
	Email         string `db:"email" json:"email"`
	Address       string `db:"address" json:"address"`
}

// Prescription represents a doctor's prescription for a customer
type Prescription struct {
	PrescriptionID         string `db:"prescription_id" json:"prescription_id"`
	CustomerID             string `db:"customer_id" json:"customer_id"`
	DoctorName             string `db:"doctor_name" json:"doctor_name"`
	PrescriptionDate       Date   `db:"prescription_date" json:"prescription_date"`
	Dosage                 string `db:"dosage" json:"dosage"`
	Frequency              string `db:"frequency" json:"frequency"`
	Duration               string `db:"duration" json:"duration"`
	AdditionalInstructions string `db:"additional_instructions" json:"additional_instructions"`
}

// Sale represents a sale header
type Sale struct {
	SaleID        string  `db:"sale_id" json:"sale_id"`
	CustomerID    string  `db:"customer_id" json:"customer_id"`
	SaleDate      Date    `db:"sale_date" json:"sale_date"`
	TotalAmount   float64 `db:"total_amount" json:"total_amount"`
	PaymentMethod string  `db:"payment_method" json:"payment_method"`
}

// SaleItem represents a line item of a sale
type SaleItem struct {
	SaleItemID   string  `db:"sale_item_id" json:"sale_item_id"`
	SaleID       string  `db:"sale_id" json:"sale_id"`
	MedicineID   string  `db:"medicine_id" json:"medicine_id"`
	Quantity     int     `db:"quantity" json:"quantity"`
	PricePerUnit float64 `db:"price_per_unit" json:"price_per_unit"`
	Subtotal     float64 `db:"subtotal" json:"subtotal"`
}

// Credential is a login row; Password holds a bcrypt hash
type Credential struct {
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"`
}

// CustomerHistoryRow is one purchase line of a customer's history
type CustomerHistoryRow struct {
	CustomerID             string `db:"customer_id" json:"customer_id"`
	CustomerName           string `db:"customer_name" json:"customer_name"`
	PrescriptionID         string `db:"prescription_id" json:"prescription_id"`
	MedicineName           string `db:"medicine_name" json:"medicine_name"`
	Quantity               int    `db:"quantity" json:"quantity"`
	SaleDate               Date   `db:"sale_date" json:"sale_date"`
	MostRecentPrescription string `db:"most_recent_prescription_id" json:"most_recent_prescription_id"`
}

// NearExpiryRow is a medicine expiring before a cutoff
type NearExpiryRow struct {
	MedicineID    string `db:"medicine_id" json:"medicine_id"`
	Name          string `db:"m_name" json:"m_name"`
	ExpiryDate    Date   `db:"expiry_date" json:"expiry_date"`
	DaysRemaining int    `db:"-" json:"days_remaining"`
}

// LowStockRow is a medicine whose quantity is under a threshold
type LowStockRow struct {
	MedicineID string `db:"medicine_id" json:"medicine_id"`
	Name       string `db:"m_name" json:"m_name"`
	Quantity   int    `db:"quantity" json:"quantity"`
}

// Operations recorded on record change events
const (
	OperationInsert = "INSERT"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

