package enums

// NoticeLevel is the severity of a non-blocking notice returned with a draft view.
type NoticeLevel string

const (
	NoticeLevelInfo    NoticeLevel = "info"
	NoticeLevelWarning NoticeLevel = "warning"
)

// NoticeCode identifies what a notice is about so the console can localize it.
type NoticeCode string

const (
	NoticeCodeQuantityMerged       NoticeCode = "quantity_merged"
	NoticeCodeSupplierProductsFail NoticeCode = "supplier_products_unavailable"
	NoticeCodeCatalogFail          NoticeCode = "supplier_catalog_unavailable"
	NoticeCodeOverrideConflict     NoticeCode = "override_conflict"
)
