package models

// Country is a reference-table row, consumed read-only by the transform stage.
type Country struct {
	ID   uint64 `badgerhold:"key"`
	Name string `json:"name" badgerhold:"unique"`
	ISO2 string `json:"iso2"`
}

// Sector is a reference-table row.
type Sector struct {
	ID   uint64 `badgerhold:"key"`
	Name string `json:"name" badgerhold:"unique"`
}

// Bank is a reference row for one data source institution.
type Bank struct {
	ID           uint64 `badgerhold:"key"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation" badgerhold:"unique"`
}
