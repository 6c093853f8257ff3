package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "order:create"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

const (
	PrivUserView            = "user:view"
	PrivUserCreate          = "user:create"
	PrivUserUpdate          = "user:update"
	PrivUserDelete          = "user:delete"
	PrivUserUpdatePrivilege = "user:update_privilege"

	PrivProductView   = "product:view"
	PrivProductCreate = "product:create"
	PrivProductUpdate = "product:update"
	PrivProductDelete = "product:delete"

	PrivCategoryView   = "category:view"
	PrivCategoryManage = "category:manage"

	PrivStockView    = "stock:view"
	PrivStockRecord  = "stock:record"
	PrivStockReverse = "stock:reverse"

	PrivOrderView   = "order:view"
	PrivOrderCreate = "order:create"
	PrivOrderUpdate = "order:update"
	PrivOrderDelete = "order:delete"

	PrivReportView = "report:view"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
	{Code: PrivUserUpdatePrivilege, Name: "Update User Privileges"},
	{Code: PrivProductView, Name: "View Product"},
	{Code: PrivProductCreate, Name: "Create Product"},
	{Code: PrivProductUpdate, Name: "Update Product"},
	{Code: PrivProductDelete, Name: "Delete Product"},
	{Code: PrivCategoryView, Name: "View Category"},
	{Code: PrivCategoryManage, Name: "Manage Category"},
	{Code: PrivStockView, Name: "View Stock Log"},
	{Code: PrivStockRecord, Name: "Record Stock Movement"},
	{Code: PrivStockReverse, Name: "Reverse Stock Movement"},
	{Code: PrivOrderView, Name: "View Order"},
	{Code: PrivOrderCreate, Name: "Create Order"},
	{Code: PrivOrderUpdate, Name: "Update Order"},
	{Code: PrivOrderDelete, Name: "Delete Order"},
	{Code: PrivReportView, Name: "View Reports"},
}

// CashierPrivileges is what the checkout counter needs and nothing more.
var CashierPrivileges = []string{
	PrivProductView,
	PrivCategoryView,
	PrivStockView,
	PrivOrderView,
	PrivOrderCreate,
	PrivOrderUpdate,
}
